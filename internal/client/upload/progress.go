package upload

import "io"

// Progress is reported after every chunk written to the destination.
type Progress struct {
	Percent int
	Sent    int64
	Total   int64
}

// progressReader caps each Read at chunk bytes so the callback fires on
// every chunk boundary regardless of how the transport buffers.
type progressReader struct {
	r     io.Reader
	chunk int
	sent  int64
	total int64
	fn    func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if len(b) > p.chunk {
		b = b[:p.chunk]
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.progress())
		}
	}
	return n, err
}

func (p *progressReader) progress() Progress {
	pr := Progress{Sent: p.sent, Total: p.total}
	if p.total > 0 {
		pr.Percent = int(p.sent * 100 / p.total)
		if pr.Percent > 100 {
			pr.Percent = 100
		}
	}
	return pr
}
