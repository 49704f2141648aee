package steg

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faanross/simulacra_ppm/internal/netpbm"
)

// newCover returns a P6 image of n pixel bytes, all even unless noisy.
func newCover(t *testing.T, n int, noisy bool) *netpbm.Image {
	t.Helper()
	require.Zero(t, n%3, "cover size must be a multiple of 3")

	img, err := netpbm.New(netpbm.RawRGB, n/3, 1, 255)
	require.NoError(t, err)
	img.Comments = []string{" cover", " test image"}
	for i := range img.Pixels {
		img.Pixels[i] = byte(i * 2)
		if noisy {
			img.Pixels[i] = byte(i*37 + 11)
		}
	}
	return img
}

// embedRaw writes payload bytes into a fresh buffer without framing.
func embedRaw(payload []byte, size int) []byte {
	pixels := make([]byte, size)
	writeFramed(pixels, payload)
	return pixels
}

func TestEmbedBit(t *testing.T) {
	assert.Equal(t, uint8(0x81), EmbedBit(0x80, true))
	assert.Equal(t, uint8(0x80), EmbedBit(0x81, false))
	assert.Equal(t, uint8(0xff), EmbedBit(0xff, true))
	assert.Equal(t, uint8(0xfe), EmbedBit(0xff, false))
	assert.Equal(t, uint8(0x00), EmbedBit(0x00, false))
}

func TestExtractByte(t *testing.T) {
	group := []byte{1, 0, 0, 0, 0, 0, 1, 1}
	assert.Equal(t, byte(0x83), ExtractByte(group))

	group = []byte{0xfe, 0xff, 0xfe, 0xff, 0xfe, 0xff, 0xfe, 0xff}
	assert.Equal(t, byte(0x55), ExtractByte(group))
}

func TestHideExample(t *testing.T) {
	cover, err := netpbm.New(netpbm.RawGray, 20, 20, 255)
	require.NoError(t, err)
	for i := range cover.Pixels {
		cover.Pixels[i] = byte(i * 2)
	}

	stego, err := Hide(cover, "hi")
	require.NoError(t, err)

	want := []byte("stghi\x00")
	for i, b := range want {
		assert.Equal(t, b, ExtractByte(stego.Pixels[i*8:]), "payload byte %d", i)
	}
	for i := range stego.Pixels {
		if i < 48 {
			assert.Equal(t, cover.Pixels[i]&^1, stego.Pixels[i]&^1, "upper bits of byte %d", i)
			continue
		}
		assert.Equal(t, cover.Pixels[i], stego.Pixels[i], "byte %d beyond prefix", i)
	}

	msg, err := Unhide(stego)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg)
}

func TestRoundTrip(t *testing.T) {
	messages := []string{
		"",
		"a",
		"Hello world!",
		"utf-8: héllo, 世界",
		strings.Repeat("a", 100),
		string([]byte{0x01, 0xff, 0x80, 0x7f}),
	}

	for _, noisy := range []bool{false, true} {
		cover := newCover(t, 3000, noisy)
		original := bytes.Clone(cover.Pixels)

		for _, m := range messages {
			stego, err := Hide(cover, m)
			require.NoError(t, err, "message %q", m)

			got, err := Unhide(stego)
			require.NoError(t, err)
			assert.Equal(t, m, got)
			assert.True(t, netpbm.SameMetadata(cover, stego))
			assert.Equal(t, original, cover.Pixels, "source must not be mutated")
		}
	}
}

func TestHideSharesNoStorage(t *testing.T) {
	cover := newCover(t, 300, false)
	stego, err := Hide(cover, "x")
	require.NoError(t, err)

	stego.Pixels[100] ^= 0xff
	stego.Comments[0] = "changed"
	assert.Equal(t, byte(200), cover.Pixels[100])
	assert.Equal(t, " cover", cover.Comments[0])
}

func TestHideTwice(t *testing.T) {
	cover := newCover(t, 600, true)

	stego, err := Hide(cover, "first")
	require.NoError(t, err)

	_, err = Hide(stego, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyHidden)
	assert.True(t, strings.HasPrefix(err.Error(), "STEG_MSG"))
	assert.Equal(t, KindAlreadyHidden, KindOf(err))
}

func TestCapacityBoundary(t *testing.T) {
	// 8 * (3 + 5 + 1) = 72 pixel bytes
	pixels := make([]byte, 72)
	c := Default()

	out, err := c.Embed(pixels, "12345")
	require.NoError(t, err)
	msg, err := c.Extract(out)
	require.NoError(t, err)
	assert.Equal(t, "12345", msg)

	_, err = c.Embed(pixels, "123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooBig)
	assert.True(t, strings.HasPrefix(err.Error(), "STEG_TOO_BIG"))

	_, err = c.Embed(pixels[:71], "12345")
	assert.ErrorIs(t, err, ErrTooBig)

	assert.Equal(t, 5, c.Capacity(72))
	assert.Equal(t, 4, c.Capacity(71))
	assert.Equal(t, 0, c.Capacity(32))
	assert.Equal(t, -1, c.Capacity(31))
	assert.Equal(t, -1, c.Capacity(0))
	assert.True(t, c.Fits(72, "12345"))
	assert.False(t, c.Fits(72, "123456"))
}

func TestTooBigCheckedBeforeMagic(t *testing.T) {
	pixels := embedRaw([]byte("stg"), 24)
	_, err := Default().Embed(pixels, "")
	assert.ErrorIs(t, err, ErrTooBig)
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name     string
		pixels   []byte
		kind     Kind
		sentinel error
	}{
		{
			name:     "no magic",
			pixels:   embedRaw([]byte("abc\x00"), 64),
			kind:     KindNoMessage,
			sentinel: ErrNoMessage,
		},
		{
			name:     "short magic",
			pixels:   embedRaw([]byte("st\x00"), 64),
			kind:     KindNoMessage,
			sentinel: ErrNoMessage,
		},
		{
			name:     "immediate terminator",
			pixels:   make([]byte, 64),
			kind:     KindNoMessage,
			sentinel: ErrNoMessage,
		},
		{
			name:     "truncated",
			pixels:   embedRaw([]byte("stghello"), 64),
			kind:     KindBadMessage,
			sentinel: ErrBadMessage,
		},
		{
			name:     "terminator in partial group",
			pixels:   embedRaw([]byte("stgab"), 45),
			kind:     KindBadMessage,
			sentinel: ErrBadMessage,
		},
		{
			name:     "empty buffer",
			pixels:   nil,
			kind:     KindBadMessage,
			sentinel: ErrBadMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Extract(tt.pixels)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.True(t, strings.HasPrefix(err.Error(), string(tt.kind)+": "), err.Error())
		})
	}
}

func TestKindsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNoMessage, ErrBadMessage))
	assert.False(t, errors.Is(ErrTooBig, ErrAlreadyHidden))
	assert.Equal(t, Kind(""), KindOf(errors.New("other")))
}

func TestMessageWithNUL(t *testing.T) {
	c := Default()
	out, err := c.Embed(make([]byte, 200), "ab\x00cd")
	require.NoError(t, err)

	msg, err := c.Extract(out)
	require.NoError(t, err)
	assert.Equal(t, "ab", msg)
}

func TestWithMagic(t *testing.T) {
	c, err := New(WithMagic("PPMX"))
	require.NoError(t, err)
	assert.Equal(t, "PPMX", c.Magic())

	out, err := c.Embed(make([]byte, 200), "custom")
	require.NoError(t, err)
	assert.Equal(t, []byte("PPMX"), []byte{
		ExtractByte(out[0:]), ExtractByte(out[8:]), ExtractByte(out[16:]), ExtractByte(out[24:]),
	})

	msg, err := c.Extract(out)
	require.NoError(t, err)
	assert.Equal(t, "custom", msg)

	_, err = Default().Extract(out)
	assert.ErrorIs(t, err, ErrNoMessage)

	// A different marker does not block hiding with the default one.
	_, err = Default().Embed(out, "again")
	assert.NoError(t, err)
	_, err = c.Embed(out, "again")
	assert.ErrorIs(t, err, ErrAlreadyHidden)
}

func TestNewRejectsBadMagic(t *testing.T) {
	_, err := New(WithMagic(""))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	_, err = New(WithMagic("a\x00b"))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestHasMessage(t *testing.T) {
	c := Default()
	assert.False(t, c.HasMessage(nil))
	assert.False(t, c.HasMessage(embedRaw([]byte("stg"), 24)[:23]))
	assert.True(t, c.HasMessage(embedRaw([]byte("stg"), 24)))
	assert.False(t, c.HasMessage(embedRaw([]byte("sth"), 24)))
}

func TestAnalyze(t *testing.T) {
	c := Default()

	blank := make([]byte, 800)
	r := c.Analyze(blank)
	assert.Equal(t, 800, r.PixelBytes)
	assert.Equal(t, 800, r.Zeros)
	assert.Equal(t, 0, r.Ones)
	assert.Equal(t, 0.0, r.Entropy)
	assert.Equal(t, 96, r.Capacity)
	assert.False(t, r.HasMessage)
	assert.Equal(t, -1, r.PayloadSize)
	assert.Equal(t, 100.0, r.ZeroRatio())
	assert.False(t, r.LooksRandom())

	out, err := c.Embed(blank, "report")
	require.NoError(t, err)
	r = c.Analyze(out)
	assert.True(t, r.HasMessage)
	assert.Equal(t, 6, r.PayloadSize)
	assert.Equal(t, 800, r.Zeros+r.Ones)
	assert.Greater(t, r.Entropy, 0.0)

	// Every byte value once in the LSB stream is maximal entropy.
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	r = c.Analyze(embedRaw(all, 256*8))
	assert.InDelta(t, 8.0, r.Entropy, 1e-9)
	assert.InDelta(t, 50.0, r.ZeroRatio(), 1e-9)
	assert.True(t, r.LooksRandom())
}

func TestHideSurvivesEncodeAtEvenMaxval(t *testing.T) {
	cover, err := netpbm.New(netpbm.RawGray, 16, 16, 254)
	require.NoError(t, err)
	for i := range cover.Pixels {
		cover.Pixels[i] = 254
	}

	stego, err := Hide(cover, "edge")
	require.NoError(t, err)

	for _, format := range []netpbm.Format{netpbm.RawGray, netpbm.PlainGray} {
		stego.Format = format
		var buf bytes.Buffer
		require.NoError(t, netpbm.Encode(&buf, stego))

		decoded, err := netpbm.Decode(&buf)
		require.NoError(t, err, format)
		msg, err := Unhide(decoded)
		require.NoError(t, err)
		assert.Equal(t, "edge", msg)
	}
}

func TestFitsAgreesWithHide(t *testing.T) {
	cover := newCover(t, 96, false)
	c := Default()
	for n := 0; n <= 10; n++ {
		msg := strings.Repeat("a", n)
		_, err := c.Hide(cover, msg)
		if c.Fits(len(cover.Pixels), msg) {
			assert.NoError(t, err, n)
		} else {
			assert.ErrorIs(t, err, ErrTooBig, n)
		}
	}
}
