package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/valyala/bytebufferpool"
	"github.com/vitkovskii/cirjson"
)

func (r *runner) validate(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("validate: no FILE given", 2)
	}

	pool, err := ants.NewPool(r.cfg.Workers)
	if err != nil {
		return errors.Wrap(err, "worker pool")
	}
	defer pool.Release()

	results := make([]error, len(files))
	wg := sync.WaitGroup{}
	for i, file := range files {
		i, file := i, file
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = r.validateFile(file)
		})
		if err != nil {
			wg.Done()
			results[i] = errors.Wrap(err, "submit")
		}
	}
	wg.Wait()

	failed := 0
	w := c.App.Writer
	for i, file := range files {
		if results[i] == nil {
			fmt.Fprintf(w, "%s: ok\n", file)
			continue
		}
		failed++
		fmt.Fprintf(w, "%s: %s\n", file, oneLine(results[i]))
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files are invalid", failed, len(files)), 1)
	}
	return nil
}

func (r *runner) validateFile(path string) error {
	p, in, err := r.openParser(path)
	if err != nil {
		return err
	}
	defer in.Close()
	defer p.Close()

	tokens := 0
	for {
		t, err := p.NextToken()
		if err != nil {
			return err
		}
		if t == cirjson.TokenNone {
			break
		}
		tokens++
	}
	r.log.WithFields(logrus.Fields{"file": path, "tokens": tokens}).Debug("validated")
	return nil
}

func oneLine(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

func (r *runner) tokens(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	p, in, err := r.openParser(path)
	if err != nil {
		return err
	}
	defer in.Close()
	defer p.Close()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for {
		t, err := p.NextToken()
		if err != nil {
			return err
		}
		if t == cirjson.TokenNone {
			break
		}
		text, err := p.Text()
		if err != nil {
			return err
		}
		buf.WriteString(t.String())
		buf.WriteByte('\t')
		buf.WriteString(text)
		buf.WriteByte('\n')
		if buf.Len() >= 64*1024 {
			if err := flushBuffer(c.App.Writer, buf); err != nil {
				return err
			}
		}
	}
	return flushBuffer(c.App.Writer, buf)
}

func flushBuffer(w io.Writer, buf *bytebufferpool.ByteBuffer) error {
	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "write output")
	}
	buf.Reset()
	return nil
}

func (r *runner) newFilter(c *cli.Context) (cirjson.TokenFilter, error) {
	var filters []cirjson.TokenFilter
	if ptr := c.String("pointer"); ptr != "" {
		f, err := cirjson.NewPointerFilter(ptr, false)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if names := c.StringSlice("name"); len(names) > 0 {
		filters = append(filters, cirjson.NewNameFilter(names...))
	}
	if indexes := c.UintSlice("index"); len(indexes) > 0 {
		list := make([]uint32, 0, len(indexes))
		for _, i := range indexes {
			list = append(list, uint32(i))
		}
		filters = append(filters, cirjson.NewIndexFilter(list...))
	}
	if len(filters) != 1 {
		return nil, cli.Exit("filter: give exactly one of --pointer, --name or --index", 2)
	}
	return filters[0], nil
}

func (r *runner) filter(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := r.newFilter(c)
	if err != nil {
		return err
	}
	inclusion := cirjson.OnlyIncludeAll
	if c.Bool("path") {
		inclusion = cirjson.IncludeAllAndPath
	}

	p, in, err := r.openParser(path)
	if err != nil {
		return err
	}
	defer in.Close()
	d := cirjson.NewFilteringParserDelegate(p, f, inclusion, c.Bool("all"))
	defer d.Close()

	g := r.factory.CreateGenerator(nopCloser{c.App.Writer})
	for {
		t, err := d.NextToken()
		if err != nil {
			g.Close()
			return err
		}
		if t == cirjson.TokenNone {
			break
		}
		if err := g.CopyCurrentEvent(d); err != nil {
			g.Close()
			return err
		}
	}
	if err := g.Close(); err != nil {
		return err
	}
	r.log.WithField("matches", d.MatchCount()).Debug("filtered")
	if d.MatchCount() > 0 {
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

// nopCloser keeps the generator from closing the app output.
type nopCloser struct {
	io.Writer
}

type fileStats struct {
	size       int64
	read       int64
	tokens     int
	objects    int
	arrays     int
	properties int
	scalars    int
	maxDepth   int
}

func (r *runner) stats(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("stats: no FILE given", 2)
	}
	for _, file := range files {
		s, err := r.fileStats(file)
		if err != nil {
			return errors.Wrapf(err, "stats of %s", file)
		}
		fmt.Fprintf(c.App.Writer, "%s: %s on disk, %s of content, %s tokens, %s objects, %s arrays, %s properties, %s scalars, max depth %d\n",
			file,
			humanize.Bytes(uint64(s.size)),
			humanize.Bytes(uint64(s.read)),
			humanize.Comma(int64(s.tokens)),
			humanize.Comma(int64(s.objects)),
			humanize.Comma(int64(s.arrays)),
			humanize.Comma(int64(s.properties)),
			humanize.Comma(int64(s.scalars)),
			s.maxDepth)
	}
	return nil
}

func (r *runner) fileStats(path string) (fileStats, error) {
	s := fileStats{}
	if path != "-" {
		info, err := os.Stat(path)
		if err != nil {
			return s, errors.Wrap(err, "stat input")
		}
		s.size = info.Size()
	}

	in, err := openInput(path)
	if err != nil {
		return s, err
	}
	defer in.Close()
	counter := &countingReader{r: in.Reader}
	p, err := r.factory.CreateParserFromReader(counter)
	if err != nil {
		return s, err
	}
	defer p.Close()

	for {
		t, err := p.NextToken()
		if err != nil {
			return s, err
		}
		if t == cirjson.TokenNone {
			break
		}
		s.tokens++
		switch {
		case t == cirjson.StartObject:
			s.objects++
		case t == cirjson.StartArray:
			s.arrays++
		case t == cirjson.PropertyName:
			s.properties++
		case t.IsScalarValue() && p.CurrentName() != cirjson.IDName:
			s.scalars++
		}
		if depth := p.ReadContext().Depth(); depth > s.maxDepth {
			s.maxDepth = depth
		}
	}
	s.read = counter.n
	return s, nil
}
