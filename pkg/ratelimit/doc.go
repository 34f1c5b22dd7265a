// Package ratelimit enforces the daily call quotas of the Research API.
//
// A Guard keeps one call counter per endpoint category (followers,
// followings, users_info). Guarding an operation goes through an Endpoint,
// which is only handed out for a known category, so a typo in a category
// fails when the operation is wired rather than when it is first called.
//
// Every call below the quota increments the counter and runs immediately.
// Once the quota is reached, the next call blocks until the next 00:00 UTC,
// the counter goes back to zero and the call runs without being counted.
// Waits cannot be cancelled. Errors from the guarded operation are returned
// unchanged and the call still counts.
//
//	guard, err := ratelimit.NewGuard(nil)
//	info := guard.MustEndpoint(ratelimit.CategoryUsersInfo)
//
//	lookup := ratelimit.Wrap1(info, client.UserInfoByHandle)
//	cached := ratelimit.NewMemo(lookup)
//	user, err := cached.Get("some_handle")
//
// Memo sits outside the guard: a cached handle neither calls the API nor
// consumes quota.
package ratelimit
