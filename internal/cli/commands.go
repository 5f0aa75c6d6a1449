package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"mediakit/internal/batch"
	"mediakit/internal/codec"
	"mediakit/internal/dicom"
	"mediakit/internal/format"
	"mediakit/internal/jpeg"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/session"
	"mediakit/internal/store"
	"mediakit/internal/tiffcodec"
)

// codecFor maps a -codec flag value to a codec and its compression tag.
func (e *env) codecFor(name string) (codec.ID, string, error) {
	switch name {
	case "tiff":
		return tiffcodec.ID, e.cfg.TIFFCompression(), nil
	case "jpeg":
		if id := e.cfg.JPEGCodec(); id == jpegcodec.AvidID {
			return id, codec.CompressionAvid, nil
		}
		return jpegcodec.ID, codec.CompressionJPEG, nil
	case "avid":
		return jpegcodec.AvidID, codec.CompressionAvid, nil
	}
	return "", "", fmt.Errorf("unknown codec %q (want tiff, jpeg or avid)", name)
}

func runInfo(ctx context.Context, e *env, args []string) error {
	fs := e.flags()
	offsets := fs.Int("offsets", 0, "print the offsets of the first N frames")
	if err := e.parse(args); err != nil || e.cfg == nil {
		return err
	}
	c, s, err := e.open()
	if err != nil {
		return err
	}
	defer c.Close()

	ids := s.Descriptors()
	e.printf("Container: %s\n%s\n", c.Path(), rule())
	if len(ids) == 0 {
		e.printf("No channels\n")
		return nil
	}
	for _, id := range ids {
		info, err := s.Describe(id)
		if err != nil {
			e.printf("%s  error: %v\n", id, err)
			continue
		}
		g := info.Geometry
		compression := info.Compression
		if compression == "" {
			compression = "none"
		}
		e.printf("%s\n", id)
		e.printf("  Class:     %s\n", info.Class)
		e.printf("  Codec:     %s (%s)\n", info.Codec, compression)
		e.printf("  Geometry:  %dx%d %s, %d-bit, %s fps\n", g.Width, g.Height, g.Layout, g.ComponentBits, g.SampleRate)
		e.printf("  Samples:   %d\n", info.Samples)
		if *offsets > 0 {
			if err := printOffsets(e, s, id, *offsets); err != nil {
				e.printf("  Offsets:   %v\n", err)
			}
		}
	}
	return nil
}

func printOffsets(e *env, s *session.Session, id store.ObjectID, limit int) error {
	m, err := s.Open(id, session.OpenOptions{})
	if err != nil {
		return err
	}
	defer m.Close()
	n := m.SampleCount()
	if int64(limit) < n {
		n = int64(limit)
	}
	e.printf("  Offsets:  ")
	for i := int64(1); i <= n; i++ {
		off, err := m.FrameOffset(i)
		if err != nil {
			e.printf("\n")
			return err
		}
		e.printf(" %d", off)
	}
	e.printf("\n")
	return nil
}

func runImport(ctx context.Context, e *env, args []string) error {
	fs := e.flags()
	codecName := fs.String("codec", "jpeg", "codec: tiff, jpeg or avid")
	in := fs.String("in", "", "raw interleaved 8-bit RGB frames (required)")
	width := fs.Int("width", 0, "frame width (required)")
	height := fs.Int("height", 0, "frame height (required)")
	fields := fs.Bool("fields", false, "store each frame as two fields")
	dominance := fs.Int("dominance", 1, "field dominance: 1 upper first, 2 lower first")
	if err := e.parse(args); err != nil || e.cfg == nil {
		return err
	}
	if *in == "" || *width <= 0 || *height <= 0 {
		fmt.Fprintln(e.stderr, "-in, -width and -height are required")
		fs.Usage()
		return ErrUsage
	}
	id, compression, err := e.codecFor(*codecName)
	if err != nil {
		return err
	}

	levels := e.cfg.Levels()
	g := codec.Geometry{
		Width:      *width,
		Height:     *height,
		Black:      levels.Black,
		White:      levels.White,
		ColorRange: levels.Range,
	}
	if *fields {
		g.Layout = format.SeparateFields
		g.FieldDominance = *dominance
	}
	if sub, _ := jpeg.ParseSubsampling(e.cfg.JPEG.Subsampling); sub == jpeg.S422 {
		g.HorizSubsampling = 2
	}

	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("could not open input: %w", err)
	}
	defer f.Close()

	c, s, err := e.open()
	if err != nil {
		return err
	}
	defer c.Close()
	m, err := s.Create(session.Spec{Codec: id, Compression: compression, Geometry: g, Quality: e.cfg.JPEG.Quality, RestartInterval: e.cfg.JPEG.RestartInterval})
	if err != nil {
		return err
	}

	buf := make([]byte, *width**height*3)
	var frames int
	for {
		_, rerr := io.ReadFull(f, buf)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			m.Close()
			return fmt.Errorf("frame %d: %w", frames+1, rerr)
		}
		if _, err := m.WriteSamples(1, buf); err != nil {
			return errors.Join(err, m.Close())
		}
		frames++
	}
	if err := m.Close(); err != nil {
		return err
	}
	e.printf("Imported %d frame(s) into %s (%s)\n", frames, m.ID(), id)
	return nil
}

func runTranscode(ctx context.Context, e *env, args []string) error {
	fs := e.flags()
	codecName := fs.String("codec", "tiff", "target codec: tiff, jpeg or avid")
	workers := fs.Int("workers", 0, "channels transcoded at once (default from config)")
	retry := fs.Bool("retry", false, "retry channels that failed in a previous run")
	if err := e.parse(args); err != nil || e.cfg == nil {
		return err
	}
	id, compression, err := e.codecFor(*codecName)
	if err != nil {
		return err
	}
	if *workers <= 0 {
		*workers = e.cfg.Batch.Workers
	}
	c, s, err := e.open()
	if err != nil {
		return err
	}
	defer c.Close()

	e.printf("Transcode\n%s\n", rule())
	e.printf("Container: %s\n", c.Path())
	e.printf("Target:    %s\n", id)
	e.printf("Workers:   %d\n\n", *workers)

	pb := newProgressBar(e.stdout, 50)
	stats, err := batch.Transcode(ctx, batch.Config{
		Session:     s,
		Target:      id,
		Compression: compression,
		Quality:     e.cfg.JPEG.Quality,
		Workers:     *workers,
		StateDir:    c.Path(),
		RetryFailed: *retry,
		Logger:      e.logger,
	}, func(cur, total int, _ store.ObjectID, _ string) {
		pb.update(cur, total)
	})
	if stats != nil && stats.Success+stats.Failed+stats.Skipped > 0 {
		e.printf("\n")
	}
	if err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}
	if err := c.Flush(); err != nil {
		return err
	}
	printSummary(e, stats)
	return nil
}

func printSummary(e *env, stats *batch.Stats) {
	e.printf("\n%s\n", rule())
	e.printf("Complete! %d succeeded, %d failed, %d skipped\n", stats.Success, stats.Failed, stats.Skipped)
	e.printf("Frames:    %d\n", stats.Frames)
	for src, dst := range stats.Outputs {
		e.printf("  %s -> %s\n", src, dst)
	}
}

func runExportDICOM(ctx context.Context, e *env, args []string) error {
	fs := e.flags()
	id := fs.String("id", "", "descriptor to export (required)")
	out := fs.String("o", "", "output DICOM file (required)")
	name := fs.String("patient-name", "", "PatientName")
	pid := fs.String("patient-id", "", "PatientID")
	desc := fs.String("series", "", "SeriesDescription")
	if err := e.parse(args); err != nil || e.cfg == nil {
		return err
	}
	if *id == "" || *out == "" {
		fmt.Fprintln(e.stderr, "-id and -o are required")
		fs.Usage()
		return ErrUsage
	}
	c, s, err := e.open()
	if err != nil {
		return err
	}
	defer c.Close()

	m, err := s.Open(store.ObjectID(*id), session.OpenOptions{})
	if err != nil {
		return err
	}
	defer m.Close()

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	if err := dicom.ExportJPEG(m, f, dicom.Meta{PatientName: *name, PatientID: *pid, SeriesDescription: *desc}); err != nil {
		f.Close()
		os.Remove(*out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}
	e.printf("Exported %d frame(s) of %s to %s\n", m.SampleCount(), *id, *out)
	return nil
}
