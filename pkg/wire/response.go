package wire

// Response is the protocol outcome of one inbound transaction.
type Response struct {
	// Opcode is the response opcode byte (success or failure marker
	// plus the original operation code). Unused for null responses.
	Opcode byte

	// Data is the response payload following the opcode byte.
	Data []byte

	// Null marks an acknowledged transaction with no bytes physically
	// transmitted. The protocol state machine completes the request
	// without sending a response APDU.
	Null bool
}

// Success builds a success response for the given request opcode.
func Success(request byte, data []byte) *Response {
	return &Response{Opcode: SuccessOpcode(request), Data: data}
}

// Failure builds a failure response for the given request opcode.
// Failure responses never carry payload.
func Failure(request byte) *Response {
	return &Response{Opcode: FailureOpcode(request)}
}

// NullResponse builds a null response: acknowledged, nothing sent.
func NullResponse() *Response {
	return &Response{Null: true}
}

// IsFailure reports whether the response carries a failure marker.
func (r *Response) IsFailure() bool {
	if r.Null {
		return false
	}
	return r.Opcode&0xE0 == MgmtFailureBase || r.Opcode&0xF0 == DiagFailureBase
}

// Bytes renders the response APDU, or nil for a null response.
func (r *Response) Bytes() []byte {
	if r.Null {
		return nil
	}
	out := make([]byte, 0, 1+len(r.Data))
	out = append(out, r.Opcode)
	return append(out, r.Data...)
}
