// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/umbra/utility/kar"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func newBuilder(c *qt.C) *kar.Builder {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC).Unix(),
		Version:     1,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { builder.Close() })
	return builder
}

func build(c *qt.C, files map[string]string) []byte {
	builder := newBuilder(c)
	for name, content := range files {
		c.Assert(builder.Add(name, strings.NewReader(content)), qt.IsNil)
	}
	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{
		"test":  testString1,
		"test2": testString2,
	})
	c.Assert(string(data[:3]), qt.Equals, "KAR")

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Header.Author, qt.Equals, "devblok")
	c.Assert(ar.Header.Version, qt.Equals, int64(1))
	c.Assert(ar.List(), qt.DeepEquals, []string{"test", "test2"})

	r, err := ar.Open("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(r.Entry.Size, qt.Equals, int64(len(testString2)))
	content, err := io.ReadAll(r)
	c.Assert(err, qt.IsNil)
	c.Assert(string(content), qt.Equals, testString2)

	content, err = ar.ReadAll("test")
	c.Assert(err, qt.IsNil)
	c.Assert(string(content), qt.Equals, testString1)

	_, err = ar.Open("missing")
	c.Assert(err, qt.ErrorIs, kar.ErrNotFound)
	_, err = ar.Find("missing")
	c.Assert(err, qt.ErrorMatches, "kar: missing: file not found in archive")
}

func TestBuilderErrors(t *testing.T) {
	c := qt.New(t)
	builder := newBuilder(c)

	c.Assert(builder.Add("test", strings.NewReader(testString1)), qt.IsNil)
	c.Assert(builder.Add("test", strings.NewReader(testString2)), qt.ErrorIs, kar.ErrDuplicate)
	c.Assert(builder.Len(), qt.Equals, 1)
}

func TestConcurrentAdd(t *testing.T) {
	c := qt.New(t)
	builder := newBuilder(c)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := strings.Repeat(fmt.Sprintf("file %d ", i), 100*(i+1))
			if err := builder.Add(fmt.Sprintf("file%02d", i), strings.NewReader(content)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.List(), qt.HasLen, 16)
	c.Assert(ar.List()[0], qt.Equals, "file00")

	// readers of different files can be used at the same time
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content, err := ar.ReadAll(fmt.Sprintf("file%02d", i))
			if err != nil {
				t.Error(err)
				return
			}
			if string(content) != strings.Repeat(fmt.Sprintf("file %d ", i), 100*(i+1)) {
				t.Errorf("file%02d does not match", i)
			}
		}(i)
	}
	wg.Wait()
}

func TestOpenCorrupted(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1})

	_, err := kar.Open(bytes.NewReader([]byte("TAR\x00")))
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)

	wrongMagic := append([]byte("ZIP\x00"), data[4:]...)
	_, err = kar.Open(bytes.NewReader(wrongMagic))
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)

	_, err = kar.Open(bytes.NewReader(data[:20]))
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)

	garbled := append([]byte{}, data...)
	for i := 12; i < 24; i++ {
		garbled[i] = 0xff
	}
	_, err = kar.Open(bytes.NewReader(garbled))
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "opentest.kar")
	c.Assert(os.WriteFile(path, build(c, map[string]string{
		"test":  testString1,
		"test2": testString2,
	}), 0644), qt.IsNil)

	f, err := kar.OpenFile(path)
	c.Assert(err, qt.IsNil)
	defer f.Close()

	content, err := f.ReadAll("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(string(content), qt.Equals, testString2)

	_, err = kar.OpenFile(filepath.Join(c.TempDir(), "absent.kar"))
	c.Assert(err, qt.Not(qt.IsNil))

	notKar := filepath.Join(c.TempDir(), "plain.txt")
	c.Assert(os.WriteFile(notKar, []byte(testString1), 0644), qt.IsNil)
	_, err = kar.OpenFile(notKar)
	c.Assert(err, qt.ErrorIs, kar.ErrFileFormat)
}
