// Package retry runs operations with exponential backoff for transient
// Research API failures. Backoff timing comes from
// github.com/cenkalti/backoff/v4; this package adds the retry predicate for
// typed API errors, attempt accounting and logging.
//
// Basic usage:
//
//	err := retry.Do(ctx, func() error {
//		return client.Ping(ctx)
//	}, nil)
//
//	cfg := retry.FromSettings(appConfig.Retry, logger.GetLogger())
//	info, err := retry.DoWithResult(ctx, func() (*research.UserInfo, error) {
//		return client.fetchUserInfo(ctx, handle)
//	}, cfg)
//
// Auth, not-found, parsing and config errors are never retried. Network,
// rate limit and server errors are retried until MaxAttempts is reached.
package retry
