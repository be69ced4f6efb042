package main

import "encoding/base64"

func decodeBase64Flag(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
