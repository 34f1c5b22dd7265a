package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCredentialGuide writes instructions for obtaining Research API client credentials
func ShowCredentialGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TIKTOK RESEARCH API CREDENTIALS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The crawler authenticates with the client credentials of an approved")
	fmt.Fprintln(w, "Research API application.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Sign in at https://developers.tiktok.com and open \"Manage apps\"")
	fmt.Fprintln(w, "STEP 2: Select the app that has Research API access")
	fmt.Fprintln(w, "STEP 3: Copy the \"Client key\" and \"Client secret\" from the app page")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then either run `tiktokgraph auth login` and paste both values, or export:")
	fmt.Fprintf(w, "   %s=<client key>\n", envClientKey)
	fmt.Fprintf(w, "   %s=<client secret>\n", envClientSecret)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Daily quotas apply per app: 20000 followers and followings requests,")
	fmt.Fprintln(w, "1000 user info requests. The crawler waits for the 00:00 UTC reset")
	fmt.Fprintln(w, "when a quota runs out.")
	fmt.Fprintln(w, rule)
}
