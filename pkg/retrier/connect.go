package retrier

import "time"

// Connect calls connector up to attempts times, sleeping between failures, and returns the last error.
func Connect[T any](attempts int, sleep time.Duration, connector func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		out, err = connector()
		if err == nil {
			return out, nil
		}
		if i < attempts-1 {
			time.Sleep(sleep)
		}
	}
	return out, err
}
