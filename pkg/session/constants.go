package session

const (
	// TokenRefreshMarginSeconds is how long before access token expiry a refresh is scheduled.
	TokenRefreshMarginSeconds = 900

	// MinRefreshIntervalSeconds bounds how often short-lived tokens are refreshed.
	MinRefreshIntervalSeconds = 60

	// RetryIntervalSeconds is the wait between refresh or import attempts that hit the network.
	RetryIntervalSeconds = 10

	// MaxRetryAttempts is the number of failed refreshes tolerated before the session is dropped.
	MaxRetryAttempts = 30

	// MaxImportTokenAttempts is the number of retries of a startup token import.
	MaxImportTokenAttempts = 5
)

// ExpiresInSeconds returns the refresh delay for an access token the server declared to
// live serverExpiresIn seconds.
func ExpiresInSeconds(serverExpiresIn int) int {
	return max(serverExpiresIn-TokenRefreshMarginSeconds, MinRefreshIntervalSeconds)
}
