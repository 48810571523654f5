package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokcho-kim/docmask/format"
	"github.com/sokcho-kim/docmask/mask"
)

var cfbMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

func docBytes(marker string) []byte {
	return append(append([]byte{}, cfbMagic...), []byte(marker)...)
}

// writeScript drops an executable shell script into a temp dir and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakeoffice.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755)
	require.NoError(t, err)
	return path
}

func TestNewOfficeValidation(t *testing.T) {
	tcs := []struct {
		name string
		cfg  Config
	}{
		{name: "empty command", cfg: Config{}},
		{name: "missing input placeholder", cfg: Config{Command: "soffice --convert-to pdf"}},
		{name: "negative timeout", cfg: Config{Command: "soffice {{input}}", Timeout: -1}},
		{name: "unbalanced quoting", cfg: Config{Command: `soffice "{{input}}`}},
	}
	for _, tc := range tcs {
		_, err := NewOffice(tc.cfg)
		assert.Error(t, err, tc.name)
	}

	o, err := NewOffice(Config{Command: "soffice --headless --convert-to pdf --outdir {{outdir}} {{input}}"})
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestConvert(t *testing.T) {
	// Refuses anything but a .doc input, then produces a PDF that carries the
	// input bytes so the test can see them round-trip.
	script := writeScript(t, `case "$1" in *.doc) ;; *) exit 9 ;; esac
echo '%PDF-1.4' > "$2"
cat "$1" >> "$2"`)

	o, err := NewOffice(Config{Command: script + " {{input}} {{output}}"})
	require.NoError(t, err)

	in := docBytes("round-trip-marker")
	out, err := o.Convert(context.Background(), in, format.Doc)
	require.NoError(t, err)

	assert.Equal(t, format.PDF, format.Sniff(out))
	assert.True(t, bytes.Contains(out, []byte("round-trip-marker")), "input bytes reach the command")
}

func TestConvertDerivedOutputName(t *testing.T) {
	// soffice-style commands take an output directory and name the PDF after
	// the input themselves.
	script := writeScript(t, `base=$(basename "$1")
base="${base%.docx}"
echo '%PDF-1.4 derived' > "$2/$base.pdf"`)

	o, err := NewOffice(Config{Command: script + " {{input}} {{outdir}}"})
	require.NoError(t, err)

	out, err := o.Convert(context.Background(), docBytes("x"), format.Docx)
	require.NoError(t, err)
	assert.Equal(t, format.PDF, format.Sniff(out))
}

func TestConvertRejectsFormats(t *testing.T) {
	o, err := NewOffice(Config{Command: "soffice {{input}}"})
	require.NoError(t, err)

	_, err = o.Convert(context.Background(), []byte("%PDF-1.4"), format.PDF)
	assert.Error(t, err, "pdf needs no conversion")

	_, err = o.Convert(context.Background(), []byte("???"), format.Unknown)
	assert.Error(t, err)

	_, err = o.Convert(context.Background(), nil, format.Doc)
	assert.Error(t, err, "empty documents cannot convert")
}

func TestConvertCommandFailure(t *testing.T) {
	script := writeScript(t, `echo "soffice exploded"
exit 3`)

	o, err := NewOffice(Config{Command: script + " {{input}} {{output}}"})
	require.NoError(t, err)

	_, err = o.Convert(context.Background(), docBytes("x"), format.Doc)
	require.Error(t, err)

	var execErr ExecError
	assert.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "soffice exploded")

	// The failure must not leak the serialization slot.
	assert.True(t, o.sem.TryAcquire(1))
	o.sem.Release(1)
}

func TestConvertMissingCommand(t *testing.T) {
	o, err := NewOffice(Config{Command: "/nonexistent/soffice-binary {{input}}"})
	require.NoError(t, err)

	_, err = o.Convert(context.Background(), docBytes("x"), format.Doc)
	assert.Error(t, err)
}

func TestConvertBadOutput(t *testing.T) {
	tcs := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "no output written",
			body:   `exit 0`,
			reason: "output file missing",
		},
		{
			name:   "empty output",
			body:   `: > "$2"`,
			reason: "output file empty",
		},
		{
			name:   "output is not a pdf",
			body:   `echo 'hello world' > "$2"`,
			reason: "output is not a pdf",
		},
	}

	for _, tc := range tcs {
		script := writeScript(t, tc.body)
		o, err := NewOffice(Config{Command: script + " {{input}} {{output}}"})
		require.NoError(t, err, tc.name)

		_, err = o.Convert(context.Background(), docBytes("x"), format.Doc)
		require.Error(t, err, tc.name)

		var outErr OutputError
		assert.True(t, errors.As(err, &outErr), tc.name)
		assert.Contains(t, err.Error(), tc.reason, tc.name)
	}
}

func TestConvertTimeout(t *testing.T) {
	script := writeScript(t, `sleep 5
echo '%PDF-1.4' > "$2"`)

	o, err := NewOffice(Config{
		Command: script + " {{input}} {{output}}",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = o.Convert(context.Background(), docBytes("x"), format.Doc)
	require.Error(t, err)
	assert.True(t, mask.IsTimeout(err), "deadline must survive the error chain")
}

func TestConvertCanceled(t *testing.T) {
	o, err := NewOffice(Config{Command: "soffice {{input}}"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = o.Convert(ctx, docBytes("x"), format.Doc)
	assert.ErrorIs(t, err, context.Canceled)

	// A cancellation while queued never holds the slot.
	assert.True(t, o.sem.TryAcquire(1))
	o.sem.Release(1)
}

func TestConvertSerializes(t *testing.T) {
	// The script fails if a second instance starts while the lock dir exists,
	// so any overlap between the two conversions fails the test.
	lock := filepath.Join(t.TempDir(), "lock")
	script := writeScript(t, fmt.Sprintf(`if ! mkdir %q 2>/dev/null; then exit 17; fi
sleep 0.2
echo '%%PDF-1.4 ok' > "$2"
rmdir %q`, lock, lock))

	o, err := NewOffice(Config{Command: script + " {{input}} {{output}}"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.Convert(context.Background(), docBytes("x"), format.Doc)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestParseCommand(t *testing.T) {
	p, err := parseCommand(`soffice --convert-to pdf "a file.doc"`)
	require.NoError(t, err)
	assert.Equal(t, "soffice", p.cmd)
	assert.Equal(t, []string{"--convert-to", "pdf", "a file.doc"}, p.args)

	_, err = parseCommand("soffice a.doc | gzip")
	require.Error(t, err)
	var parseErr ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestRenderCommand(t *testing.T) {
	got := renderCommand("run {{input}} -o {{output}} -d {{outdir}}", "/t/in.doc", "/t/out.pdf", "/t")
	assert.Equal(t, "run /t/in.doc -o /t/out.pdf -d /t", got)
}
