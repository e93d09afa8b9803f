package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// compressThreshold is the encoded size above which envelope payloads are
// lz4 compressed before hitting the cache backend.
const compressThreshold = 1024

// envelope is the on-the-wire shape of every cached value. Found carries
// negative results (a cached "no such record" / "not authorized") as
// first-class values so they are never confused with a cache miss.
type envelope struct {
	Found      bool   `msgpack:"f"`
	Compressed bool   `msgpack:"c,omitempty"`
	Data       []byte `msgpack:"d,omitempty"`
}

// Marshal encodes a value for the cache. A nil value encodes the negative
// envelope.
func Marshal(v interface{}) ([]byte, error) {
	if v == nil {
		return msgpack.Marshal(&envelope{Found: false})
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding cache value: %w", err)
	}

	e := &envelope{Found: true, Data: data}
	if len(data) > compressThreshold {
		compressed, err := compress(data)
		if err != nil {
			return nil, err
		}
		e.Compressed = true
		e.Data = compressed
	}

	return msgpack.Marshal(e)
}

// Unmarshal decodes a cached envelope into v. The boolean reports whether
// the envelope carried a value: false means a cached negative, and v is
// left untouched.
func Unmarshal(packed []byte, v interface{}) (bool, error) {
	var e envelope
	if err := msgpack.Unmarshal(packed, &e); err != nil {
		return false, fmt.Errorf("error decoding cache envelope: %w", err)
	}

	if !e.Found {
		return false, nil
	}

	data := e.Data
	if e.Compressed {
		var err error
		data, err = decompress(data)
		if err != nil {
			return false, err
		}
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("error decoding cache value: %w", err)
	}
	return true, nil
}

func compress(data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := lz4.NewWriter(buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("error compressing cache value: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("error compressing cache value: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("error decompressing cache value: %w", err)
	}
	return out, nil
}
