// Package aggregates defines the error taxonomy and persistence contracts
// shared by the marketing image core.
//
// These contracts avoid persistence/transport implementation details and
// describe the write boundary where snapshot and events commit together.
package aggregates
