// Command studio is the studio assistant: a French command router over a
// music studio's project catalog, served over HTTP and Slack.
//
// Usage:
//
//	API_KEY=... SLACK_BOT_TOKEN=xoxb-... SLACK_APP_TOKEN=xapp-... studio serve
//	studio seed catalog.yaml
//	studio ask
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
