package rtmcvm

import "testing"

func sampleImage() *Image {
	return &Image{
		Instructions: []Instruction{
			NewInstruction(OpLoadConst, 1, ValueFromUint32(0)),
			NewInstruction(OpLoadConst, 1, ValueFromUint32(1)),
			NewInstruction(OpAdd, 1),
			NewInstruction(OpHalt, 2),
		},
		Constants: []Value{ValueFromInt32(2), ValueFromInt32(3)},
		Strings:   []string{"hello %d"},
		Functions: []FuncEntry{{Name: "main", Addr: 0}},
		Symbols:   []SymEntry{{Name: "counter", Addr: 0}},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := sampleImage()
	data, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got.Instructions) != len(img.Instructions) {
		t.Fatalf("instruction count: got %d want %d", len(got.Instructions), len(img.Instructions))
	}
	for i, inst := range img.Instructions {
		if got.Instructions[i] != inst {
			t.Errorf("instruction %d: got %+v want %+v", i, got.Instructions[i], inst)
		}
	}
	if len(got.Strings) != 1 || got.Strings[0] != "hello %d" {
		t.Errorf("strings: got %v", got.Strings)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "main" {
		t.Errorf("functions: got %v", got.Functions)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	img := sampleImage()
	data, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[0] ^= 0xFF

	_, err = Decode(data)
	var ie *ImageInvalid
	if err == nil {
		t.Fatal("expected error for corrupted magic")
	}
	if !asImageInvalid(err, &ie) {
		t.Fatalf("expected *ImageInvalid, got %T: %v", err, err)
	}
	if ie.Reason != ReasonBadMagic {
		t.Errorf("reason: got %v want %v", ie.Reason, ReasonBadMagic)
	}
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	img := sampleImage()
	data, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Corrupt a body byte without touching the header fields.
	data[len(data)-1] ^= 0xFF

	_, err = Decode(data)
	var ie *ImageInvalid
	if !asImageInvalid(err, &ie) || ie.Reason != ReasonChecksumMismatch {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	var ie *ImageInvalid
	if !asImageInvalid(err, &ie) || ie.Reason != ReasonTruncated {
		t.Fatalf("expected truncated, got %v", err)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	img := sampleImage()
	data, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[4] = 99

	_, err = Decode(data)
	var ie *ImageInvalid
	if !asImageInvalid(err, &ie) || ie.Reason != ReasonBadVersion {
		t.Fatalf("expected bad version, got %v", err)
	}
}

func asImageInvalid(err error, out **ImageInvalid) bool {
	ie, ok := err.(*ImageInvalid)
	if ok {
		*out = ie
	}
	return ok
}
