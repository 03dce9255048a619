//go:build !unix

package identity

func unameFacts() (nodename, machine string) { return "", "" }
