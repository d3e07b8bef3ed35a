// Package notifier renders qualifying availability into a message and delivers
// it to chat channels.
//
// Discord webhooks are the primary channel; Telegram and Twitter are optional.
// DryRun prints instead of posting and Multi fans out. Delivery is
// fire-and-forget unless retries are enabled: Discord and Telegram retry each
// posted part through WithRetry, and Retrying wraps single-request channels.
package notifier
