package model

// Version is the current envman release.
const Version = "0.4.0"

// Release repository checked by --update.
const (
	RepoOwner = "envman-dev"
	RepoName  = "envman"
)
