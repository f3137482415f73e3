/*
Package resilience provides the circuit breaker used by the API client.

# States

- Closed: requests pass through; consecutive failures are counted
- Open: requests fail immediately with ErrCircuitOpen
- Half-Open: one probe at a time; enough successes close the circuit

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[Probes successes]-> Closed
	                                                         |
	                                                     [failure]
	                                                         v
	                                                       Open

# Usage

	breaker := resilience.New("playground-api", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		IsFailure: func(err error) bool { return isServerError(err) },
	})

	err := breaker.Do(func() error {
		_, err := client.Call()
		return err
	})
*/
package resilience
