package queue

import (
	"context"
)

// Request is one image generation waiting for a worker.
type Request struct {
	Ctx       context.Context
	Prompt    string
	Size      string
	Quality   string
	Reference []byte
}

type Queue interface {
	Start()
	Stop()
	Add(req *Request) (chan []byte, chan error, error)
}
