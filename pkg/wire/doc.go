// Package wire defines the bit-packed wire format of the fieldbus
// management and diagnostic protocol.
//
// Every management or diagnostic message begins with a single opcode
// byte. The class tag lives in the top bits and the operation code in
// the bottom bits:
//
//   - Management: 011x_xxxx (3-bit tag, 5-bit operation, public base 0x60)
//   - Diagnostic: 0101_xxxx (4-bit tag, 4-bit operation, public base 0x50)
//
// Responses reuse the operation code with the class tag replaced by a
// success or failure marker (001/000 for management, 0011/0001 for
// diagnostic).
//
// The reserved management operation 0x1D ("expanded") carries a second
// sub-command byte selecting one of the extended operations.
//
// All multi-byte integers on the wire are big-endian. Table records
// (domain, address, datapoint config, alias config) are fixed-size
// bit-packed layouts documented on the respective Encode functions.
package wire
