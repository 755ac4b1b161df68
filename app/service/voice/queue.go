package voice

import "log/slog"

const queueBufferSize = 64

// utteranceQueue buffers finalized transcripts between the recognition
// stream and the conversation loop. Add never blocks the audio path.
type utteranceQueue struct {
	queue chan string
}

func newUtteranceQueue() *utteranceQueue {
	return &utteranceQueue{
		queue: make(chan string, queueBufferSize),
	}
}

func (q *utteranceQueue) Add(text string) {
	select {
	case q.queue <- text:
	default:
		slog.Warn("utterance queue is full")
	}
}

func (q *utteranceQueue) Channel() <-chan string {
	return q.queue
}

// frameBuffer decouples the room read loop from the recognizer stream.
// Frames are dropped silently under backpressure; the recognizer tolerates
// gaps far better than a stalled websocket.
type frameBuffer struct {
	frames chan []byte
}

func newFrameBuffer(size int) *frameBuffer {
	return &frameBuffer{
		frames: make(chan []byte, size),
	}
}

func (b *frameBuffer) Add(frame []byte) {
	select {
	case b.frames <- frame:
	default:
	}
}

func (b *frameBuffer) Channel() <-chan []byte {
	return b.frames
}
