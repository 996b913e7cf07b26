package value

import (
	"io/ioutil"
	"testing"
)

func TestBufferCursors(t *testing.T) {
	b := NewBuffer(4, 64)
	defer b.Decref()

	if n := b.AppendString("hello\nworld\n"); n != 12 {
		t.Fatalf("appended %d", n)
	}
	if b.TotalBytes() != 12 || b.LeftBytes() != 12 {
		t.Fatalf("total %d left %d", b.TotalBytes(), b.LeftBytes())
	}

	line, ok := b.GetLine('\n')
	if !ok || string(line) != "hello" {
		t.Fatalf("line %q", line)
	}
	c, ok := b.GetChar()
	if !ok || c != 'w' {
		t.Fatalf("char %q", c)
	}
	if err := b.Ungetc('W'); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Get(5)); got != "World" {
		t.Fatal(got)
	}
	if b.Get(5) != nil {
		t.Fatal("got more than left")
	}
	if _, ok := b.GetLine('x'); ok {
		t.Fatal("found missing separator")
	}
	if b.LeftBytes() != 1 {
		t.Fatalf("left %d", b.LeftBytes())
	}

	if err := b.SetReadOffset(13); err != ErrOffset {
		t.Fatalf("expected ErrOffset, got %v", err)
	}
	b.ResetRead()
	if b.LeftBytes() != 12 {
		t.Fatalf("left %d", b.LeftBytes())
	}
}

func TestBufferMaxSize(t *testing.T) {
	b := NewBuffer(2, 8)
	defer b.Decref()

	if n, err := b.Write([]byte("0123456789")); n != 8 || err != ErrFull {
		t.Fatalf("wrote %d %v", n, err)
	}
	if b.FreeBytes() != 0 {
		t.Fatalf("free %d", b.FreeBytes())
	}
	if b.AppendChar('x') != 0 {
		t.Fatal("wrote past max")
	}
	bs, err := ioutil.ReadAll(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "01234567" {
		t.Fatal(string(bs))
	}
}

func TestBufferPrintfAndValue(t *testing.T) {
	b := NewBuffer(0, 128)
	defer b.Decref()

	b.Printf("%s=%d;", "n", 3)
	v := MustParse(`{"a":[1,2]}`)
	if _, err := b.AppendValue(v); err != nil {
		t.Fatal(err)
	}
	v.Decref()
	if got := string(b.Bytes()); got != `n=3;{"a":[1,2]}` {
		t.Fatal(got)
	}

	src := BufferString("tail")
	if _, err := b.AppendBuffer(src); err != nil {
		t.Fatal(err)
	}
	if src.LeftBytes() != 0 {
		t.Fatal("source not consumed")
	}
	src.Decref()
}

func TestBufferSerialize(t *testing.T) {
	b := BufferString("binary\x00data")
	b.SetLabel("payload")
	b.SetMark(3)
	b.Get(2)

	v := b.Serialize()
	c, err := DeserializeBuffer(v)
	if err != nil {
		t.Fatal(err)
	}
	if c.Label() != "payload" || c.Mark() != 3 {
		t.Fatalf("label %q mark %d", c.Label(), c.Mark())
	}
	if string(c.Bytes()) != "nary\x00data" {
		t.Fatalf("%q", c.Bytes())
	}
	v.Decref()
	b.Decref()
	c.Decref()
}

func TestBinaryTypes(t *testing.T) {
	EnableAudit(true)
	defer EnableAudit(false)

	kw := NewObject()
	kw.Set("gbuffer", NewOpaque(BufferString("abc")))
	kw.Set("topic", NewString("t"))

	ser, err := Serialize(kw)
	if err != nil {
		t.Fatal(err)
	}
	if ser.Has("gbuffer") || !ser.Has("__gbuffer___") {
		t.Fatal(ser)
	}

	text := ser.String()
	ser.Decref()
	back, err := ParseString(text)
	if err != nil {
		t.Fatal(err)
	}
	des, err := Deserialize(back)
	if err != nil {
		t.Fatal(err)
	}
	back.Decref()

	b, is := des.Get("gbuffer").Ptr().(*Buffer)
	if !is {
		t.Fatal(des)
	}
	if string(b.Bytes()) != "abc" {
		t.Fatalf("%q", b.Bytes())
	}
	des.Decref()
	kw.Decref()

	if s := Audit(); !s.Balanced() {
		t.Fatalf("unbalanced %#v", s)
	}
}
