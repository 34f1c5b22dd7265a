// Package plugin provides the host contract for crawler plugins and the
// TikTok followers and followings plugins built on it.
//
// A host registers plugins in a Registry and runs them by name with a
// Configuration. The TikTok plugins decode their Options from that
// configuration, collect an edge table through the Research API and look up a
// node per handle. Entry points count against the followers and followings
// quotas; each distinct user info lookup counts against users_info once.
//
//	guard, _ := ratelimit.NewGuard(nil)
//	crawler, _ := plugin.NewCrawler(guard, plugin.ResearchClientFactory(base, log), log)
//	reg := plugin.NewRegistry(log)
//	_ = plugin.Register(reg, crawler)
//
//	edges, nodes, err := reg.Run(ctx, plugin.FollowersPlugin, []string{"tiktok"}, plugin.Configuration{
//		"client_key":    key,
//		"client_secret": secret,
//	})
package plugin
