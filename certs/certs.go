/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package certs tracks the trust boundary of packages inside one loader.
//
// A package's signers are established by the first type defined in it. A
// Ledger records that set and rejects later definitions whose signers
// differ. Packages additionally records explicit package definitions and
// their optional seal base.
package certs

import (
	"crypto/x509"
	"sync"

	"github.com/opencontainers/go-digest"

	"dirpx.dev/ldx/errs"
)

// Certificate is a signer certificate identified by the digest of its
// encoded (DER) form.
type Certificate struct {
	// Subject is informational only; it takes no part in equality.
	Subject string
	dgst    digest.Digest
}

// New returns a Certificate for the encoded bytes raw.
func New(subject string, raw []byte) Certificate {
	return Certificate{Subject: subject, dgst: digest.FromBytes(raw)}
}

// FromX509 returns a Certificate for a parsed X.509 certificate.
func FromX509(c *x509.Certificate) Certificate {
	return New(c.Subject.String(), c.Raw)
}

// Digest returns the certificate fingerprint.
func (c Certificate) Digest() digest.Digest { return c.dgst }

// Set is an unordered set of signer certificates. A nil or empty Set means
// "unsigned".
type Set []Certificate

// Equal reports whether s and o contain the same certificates, ignoring
// order. Both directions are checked, so duplicates on one side cannot mask
// a missing certificate on the other.
func (s Set) Equal(o Set) bool {
	return s.within(o) && o.within(s)
}

func (s Set) within(o Set) bool {
	for _, c := range s {
		found := false
		for _, oc := range o {
			if c.dgst == oc.dgst {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Ledger maps package names to the signer set of their first type.
// It is safe for concurrent use.
type Ledger struct {
	m sync.Map // map[string]Set
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// CheckAndRecord records set for pkg if no set is recorded yet, otherwise
// compares it with the recorded one. typeName is only used in the error.
// A mismatch leaves the recorded set untouched.
func (l *Ledger) CheckAndRecord(pkg, typeName string, set Set) error {
	if set == nil {
		set = Set{}
	}
	prev, loaded := l.m.LoadOrStore(pkg, set)
	if !loaded {
		return nil
	}
	if !prev.(Set).Equal(set) {
		return &errs.SignerMismatchError{Package: pkg, Type: typeName}
	}
	return nil
}

// Signers returns the set recorded for pkg.
func (l *Ledger) Signers(pkg string) (Set, bool) {
	v, ok := l.m.Load(pkg)
	if !ok {
		return nil, false
	}
	return v.(Set), true
}

// Len returns the number of recorded packages.
func (l *Ledger) Len() int {
	n := 0
	l.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
