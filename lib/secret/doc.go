// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds sensitive bytes, such as the portal access
// token, outside the Go heap.
//
// [Buffer] memory comes from an anonymous mmap, is locked against swap
// with mlock and excluded from core dumps with MADV_DONTDUMP. Close
// zeroes and unmaps it. [Buffer.Equal] compares in constant time so
// callers can check a presented credential without a timing oracle.
//
// [Zero] wipes ordinary heap slices (request bodies, decoded values)
// once the caller is finished with them.
package secret
