// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/utility/kar"
)

func init() {
	currentUserName = "unknown"
	if u, err := user.Current(); err == nil {
		currentUserName = u.Username
	}
}

var currentUserName string

var (
	author   = flag.String("author", "", "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given into the current directory")
	list     = flag.String("l", "", "List the contents of the archive given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *list, *compress} {
		if op != "" {
			ops++
		}
	}

	var err error
	switch {
	case ops == 0:
		flag.PrintDefaults()
		return
	case ops > 1:
		err = errors.New("only one operation at a time")
	case *compress != "":
		err = compressFiles(*compress, *dstFile)
	case *extract != "":
		err = extractFiles(*extract, ".")
	case *list != "":
		err = listFiles(*list)
	}
	if err != nil {
		log.WithError(err).Fatal("kar")
	}
}

func compressFiles(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	if err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	}); err != nil {
		return err
	}

	name := *author
	if name == "" {
		name = currentUserName
	}
	builder, err := kar.NewBuilder(kar.Header{
		Author:      name,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	var (
		wg       sync.WaitGroup
		mutex    sync.Mutex
		firstErr error
	)
	for _, path := range filesToCompress {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			err := addFile(builder, src, path)
			if err != nil {
				mutex.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mutex.Unlock()
			}
		}(path)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(out)
	if err != nil {
		out.Close()
		return err
	}
	log.WithFields(log.Fields{"files": builder.Len(), "bytes": written}).Info("Archive written")
	return out.Close()
}

// addFile stores path under its slash separated name relative to root
func addFile(builder *kar.Builder, root, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name, err := filepath.Rel(root, path)
	if err != nil || name == "." {
		name = filepath.Base(path)
	}
	log.WithField("file", name).Debug("Compressing")
	return builder.Add(filepath.ToSlash(name), f)
}

func extractFiles(src, dst string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, name := range archive.List() {
		target := filepath.Join(dst, filepath.FromSlash(name))
		if rel, err := filepath.Rel(dst, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("%s escapes the destination", name)
		}
		if err := extractFile(archive, name, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(archive *kar.File, name, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	r, err := archive.Open(name)
	if err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	log.WithField("file", target).Debug("Extracted")
	return out.Close()
}

func listFiles(src string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	fmt.Printf("author %s, version %d, created %s\n", archive.Header.Author, archive.Header.Version,
		time.Unix(archive.Header.DateCreated, 0).Format(time.RFC3339))
	for _, e := range archive.Header.Index {
		fmt.Printf("%10d %10d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}
