// Package appfs embeds static repository assets needed at runtime.
package appfs

import "embed"

//go:embed migrations
var Migrations embed.FS
