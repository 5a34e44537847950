// Package compress provides the compression codecs shared by the combined
// index container (§4.5) and the quantized-vector file (§4.2).
//
// Both formats record a format.CompressionType per payload and apply
// compression independently: a combined-index section is NONE or GZIP per
// the external interface (§6); a quantized-vector payload may additionally
// use LZ4, S2 or Zstd when the caller opts in. All five codecs share the
// same Codec interface so callers select one via CreateCodec/GetCodec
// without a type switch.
//
// Zstd has two build-tag-selected implementations, matching the teacher's
// split: zstd_cgo.go (valyala/gozstd, built whenever cgo is enabled, which
// is the default for native builds) and zstd_pure.go (klauspost/compress/zstd,
// pure Go, built when cgo is disabled, e.g. CGO_ENABLED=0).
package compress
