package gateway

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/RogueTeam/ilpgateway/utils"
)

type Initiate struct {
	// Wallet address receiving the payment. Must use HTTPS
	ReceivingWalletUrl string
	// Amount to deliver in the receiver minor unit
	Amount float64
}

// validate trims the wallet URL and checks every rule, collecting all the
// violations
func (c *Controller) validate(req *Initiate) (err error) {
	var problems []string

	req.ReceivingWalletUrl = strings.TrimSpace(req.ReceivingWalletUrl)
	if req.ReceivingWalletUrl == "" {
		problems = append(problems, "receiving wallet is required")
	} else {
		u, err := url.Parse(req.ReceivingWalletUrl)
		switch {
		case err != nil || u.Host == "":
			problems = append(problems, "receiving wallet is a malformed URL")
		case c.trusted(req.ReceivingWalletUrl):
		case u.Scheme != "https":
			problems = append(problems, "receiving wallet must use HTTPS")
		case !c.hostAllowed(u.Hostname()):
			problems = append(problems, "receiving wallet host is not allowed")
		}
	}

	switch {
	case math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0):
		problems = append(problems, "amount must be a number")
	case req.Amount <= 0:
		problems = append(problems, "amount must be greater than 0")
	case !utils.Between(req.Amount, 0, float64(c.maxAmount)):
		problems = append(problems, fmt.Sprintf("amount exceeds the maximum of %d", c.maxAmount))
	case req.Amount != math.Trunc(req.Amount):
		problems = append(problems, "amount must be a whole number of minor units")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (c *Controller) hostAllowed(host string) bool {
	if len(c.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range c.allowedHosts {
		if strings.Contains(host, allowed) {
			return true
		}
	}
	return false
}

func (c *Controller) trusted(walletUrl string) bool {
	return c.trustedPrefix != "" && strings.HasPrefix(walletUrl, c.trustedPrefix+"/")
}
