//go:build sonic

package sync

import "github.com/bytedance/sonic"

var (
	jsonMarshalIndent = sonic.MarshalIndent
	jsonUnmarshal     = sonic.Unmarshal
)
