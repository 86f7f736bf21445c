package streamutil

import (
	"strings"
	"testing"
	"time"

	. "github.com/fulldump/biff"
)

func TestMonotonicClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.Unix(1000, 0)
	c := &MonotonicClock{now: func() time.Time { return fixed }}

	a := c.NextMillis()
	b := c.NextMillis()
	d := c.NextMillis()

	AssertEqual(b, a+1)
	AssertEqual(d, b+1)
}

func TestMonotonicClock_SurvivesRegression(t *testing.T) {
	tick := time.Unix(2000, 0)
	c := &MonotonicClock{now: func() time.Time { return tick }}

	a := c.NextMillis()

	tick = time.Unix(1000, 0) // clock jumps backwards
	b := c.NextMillis()

	AssertEqual(b, a+1)
}

func TestRecord_EncodeDecode(t *testing.T) {
	r := Record{ID: "abc", Data: []byte(`{"x":1}`), Ts: 42}

	encoded, err := r.Encode()
	AssertNil(err)

	decoded, err := DecodeRecord(encoded)
	AssertNil(err)
	AssertEqual(decoded.ID, "abc")
	AssertEqual(string(decoded.Data), `{"x":1}`)
	AssertEqual(decoded.Ts, int64(42))
}

func TestRecord_Tombstone(t *testing.T) {
	r := Record{ID: "abc", Data: nil, Ts: 1}
	AssertEqual(r.IsTombstone(), true)

	encoded, err := r.Encode()
	AssertNil(err)

	decoded, err := DecodeRecord(encoded)
	AssertNil(err)
	AssertEqual(decoded.IsTombstone(), true)
}

func TestDecodeRecord_MissingId(t *testing.T) {
	_, err := DecodeRecord([]byte(`["",{"a":1},1]`))
	AssertNotNil(err)
}

func TestEachLine_TracksByteOffsets(t *testing.T) {
	body := "first\nsecond\nthird"
	var lines []Line
	err := EachLine(strings.NewReader(body), func(l Line) error {
		lines = append(lines, l)
		return nil
	})
	AssertNil(err)
	AssertEqual(len(lines), 3)
	AssertEqual(lines[0].Offset, int64(0))
	AssertEqual(lines[1].Offset, int64(6))
	AssertEqual(lines[2].Offset, int64(13))
	AssertEqual(string(lines[2].Bytes), "third")
}

func TestEachLine_SkipsBlankLines(t *testing.T) {
	body := "a\n\nb\n"
	var count int
	EachLine(strings.NewReader(body), func(l Line) error {
		count++
		return nil
	})
	AssertEqual(count, 2)
}

func TestEncodeDecodeMutationBatch(t *testing.T) {
	records := []Record{
		{ID: "a", Data: []byte(`1`), Ts: 1},
		{ID: "b", Data: nil, Ts: 2},
	}

	body, err := EncodeMutationBatch(records)
	AssertNil(err)

	decoded, err := DecodeMutationBatch(body)
	AssertNil(err)
	AssertEqual(len(decoded), 2)
	AssertEqual(decoded[0].ID, "a")
	AssertEqual(decoded[1].IsTombstone(), true)
}

func TestBloom_MarshalRoundTrip(t *testing.T) {
	b := NewBloom(100, 0.01)
	b.Add("alice")
	b.Add("bob")

	data, err := b.MarshalJSON()
	AssertNil(err)

	var restored Bloom
	AssertNil(restored.UnmarshalJSON(data))

	AssertEqual(restored.MightContain("alice"), true)
	AssertEqual(restored.MightContain("bob"), true)
}

func TestLRU_EvictionHook(t *testing.T) {
	var evicted []string
	l, err := NewLRU[string, int](2, func(k string, v int) {
		evicted = append(evicted, k)
	})
	AssertNil(err)

	l.Add("a", 1)
	l.Add("b", 2)
	l.Add("c", 3) // evicts "a"

	AssertEqual(len(evicted), 1)
	AssertEqual(evicted[0], "a")
	AssertEqual(l.Contains("a"), false)
	AssertEqual(l.Contains("c"), true)
}

func TestFanOut_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := FanOut(items, 2, func(i int) int { return i * i })

	AssertEqual(len(results), 5)
	for i, r := range results {
		AssertEqual(r, items[i]*items[i])
	}
}

func TestFanOutErr_FirstErrorWins(t *testing.T) {
	items := []int{1, 2, 3}
	_, err := FanOutErr(items, 3, func(i int) (int, error) {
		if i == 2 {
			return 0, errBoom
		}
		return i, nil
	})
	AssertEqual(err, errBoom)
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }
