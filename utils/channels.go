package utils

import "log"

// ConsumeChannel drains c so the producer goroutine can finish
func ConsumeChannel[T any](c <-chan T) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.Println("Failed to consume channel:", err)
	}()
	for range c {
	}
}
