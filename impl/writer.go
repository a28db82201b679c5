package impl

import (
	"sync"

	"github.com/ls4154/golwal/util"
)

type writer struct {
	record   []byte
	sync     bool
	resultCh chan error
}

// writeSerializer runs a single goroutine that collects concurrent appends
// and writes them as a group, so one sync covers every record in the group.
type writeSerializer struct {
	apply    func(records [][]byte, sync bool) error
	writerCh chan *writer
	wg       sync.WaitGroup
	// lastWriter holds a writer dequeued but not included in the current group
	// (sync mismatch or size limit) to be the first writer in the next group.
	lastWriter *writer
	records    [][]byte
}

func newWriteSerializer(apply func([][]byte, bool) error) *writeSerializer {
	return &writeSerializer{
		apply:    apply,
		writerCh: make(chan *writer),
	}
}

func (ws *writeSerializer) Write(record []byte, sync bool) error {
	w := &writer{
		record:   record,
		sync:     sync,
		resultCh: make(chan error, 1),
	}

	ws.writerCh <- w
	return <-w.resultCh
}

func (ws *writeSerializer) Run() {
	ws.wg.Add(1)
	go ws.main()
}

func (ws *writeSerializer) main() {
	defer ws.wg.Done()
	for {
		writers := ws.fetchWriters()
		if len(writers) == 0 {
			// closed
			break
		}

		records := ws.records[:0]
		for _, w := range writers {
			records = append(records, w.record)
		}

		err := ws.apply(records, writers[0].sync)

		// drop references to caller buffers
		for i := range records {
			records[i] = nil
		}
		ws.records = records[:0]

		for _, w := range writers {
			w.resultCh <- err
		}
	}
}

// Close waits for queued writers to finish. Write must not be called after
// Close.
func (ws *writeSerializer) Close() {
	close(ws.writerCh)
	ws.wg.Wait()
}

const maxGroupSize = 1 << 20

func (ws *writeSerializer) fetchWriters() []*writer {
	var first *writer
	if ws.lastWriter != nil {
		first = ws.lastWriter
		ws.lastWriter = nil
	} else {
		r, ok := <-ws.writerCh
		if !ok {
			return nil
		}
		first = r
	}

	util.Assert(first != nil)
	util.Assert(ws.lastWriter == nil)

	size := len(first.record)
	writers := []*writer{first}

	for {
		select {
		case r, ok := <-ws.writerCh:
			if !ok {
				return writers
			}
			// Do not mix sync and non-sync writers in the same group.
			if r.sync != first.sync {
				ws.lastWriter = r
				return writers
			}
			size += len(r.record)
			if size > maxGroupSize {
				// Do not make the group too big.
				ws.lastWriter = r
				return writers
			}
			writers = append(writers, r)
		default:
			return writers
		}
	}
}
