// Package research provides a client for the TikTok Research API user
// endpoints: profile info, followers and following.
//
// The client authenticates with the client credentials grant, paces its
// requests and retries transient failures. It does not count calls against
// the daily quotas; callers wrap its methods with a ratelimit.Guard.
//
// Example usage:
//
//	client := research.NewClient(research.ClientConfig{
//		ClientKey:         key,
//		ClientSecret:      secret,
//		RequestsPerMinute: 60,
//	}, logger.GetLogger())
//
//	info, err := client.UserInfo(ctx, "tiktok")
//	if err != nil {
//		var apiErr *errors.Error
//		if stderrors.As(err, &apiErr) && apiErr.Type == errors.ErrorTypeAuth {
//			// bad credentials
//		}
//	}
//
//	edges, err := client.AllFollowers(ctx, []string{"tiktok"}, 100, 1500)
package research
