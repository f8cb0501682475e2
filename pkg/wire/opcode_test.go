package wire

import "testing"

func TestDecodeOpcodeClasses(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		cls  Class
		op   uint8
	}{
		{"MgmtUpdateDomain", 0x63, ClassManagement, 0x03},
		{"MgmtExpanded", 0x7D, ClassManagement, 0x1D},
		{"MgmtLowest", 0x60, ClassManagement, 0x00},
		{"DiagQueryStatus", 0x51, ClassDiagnostic, 0x01},
		{"DiagProxy", 0x52, ClassDiagnostic, 0x02},
		{"ForeignLow", 0x12, ClassUnknown, 0},
		{"ForeignHigh", 0xA3, ClassUnknown, 0},
		{"ResponseByteIsNotARequest", 0x23, ClassUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, op := DecodeOpcode(tt.b)
			if cls != tt.cls || op != tt.op {
				t.Errorf("DecodeOpcode(%#02x) = (%v, %#02x), want (%v, %#02x)",
					tt.b, cls, op, tt.cls, tt.op)
			}
		})
	}
}

func TestResponseMarkers(t *testing.T) {
	req := MgmtOpcode(MgmtUpdateAddress)
	if got := SuccessOpcode(req); got != 0x26 {
		t.Errorf("SuccessOpcode(%#02x) = %#02x, want 0x26", req, got)
	}
	if got := FailureOpcode(req); got != 0x06 {
		t.Errorf("FailureOpcode(%#02x) = %#02x, want 0x06", req, got)
	}

	diag := DiagOpcode(DiagQueryStatus)
	if got := SuccessOpcode(diag); got != 0x31 {
		t.Errorf("SuccessOpcode(%#02x) = %#02x, want 0x31", diag, got)
	}
	if got := FailureOpcode(diag); got != 0x11 {
		t.Errorf("FailureOpcode(%#02x) = %#02x, want 0x11", diag, got)
	}
}

func TestResponseBytes(t *testing.T) {
	resp := Success(MgmtOpcode(MgmtQueryDomain), []byte{0x01, 0x02})
	got := resp.Bytes()
	if len(got) != 3 || got[0] != 0x2A || got[1] != 0x01 {
		t.Errorf("Bytes() = %#v", got)
	}
	if resp.IsFailure() {
		t.Error("success response reported as failure")
	}

	fail := Failure(DiagOpcode(DiagProxyRelay))
	if !fail.IsFailure() {
		t.Error("failure response not reported as failure")
	}

	null := NullResponse()
	if null.Bytes() != nil {
		t.Error("null response must render no bytes")
	}
}
