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

// Package errs defines the error taxonomy shared by every ldx package.
//
// Four families exist:
//
//   - TypeNotFoundError: recoverable. Delegation swallows it while probing
//     ancestors; it only surfaces when no loader and no find hook produced
//     the type.
//   - LinkageError: fatal to the requesting call and never retried. The Code
//     field tells malformed names, bad class data, duplicate definitions,
//     duplicate library ownership and failed native attachment apart.
//   - SignerMismatchError and SealingError: fatal to the one define call that
//     triggered them; previously defined types stay valid.
//   - InitializationError: wraps a failure of the one-time initializer run
//     while linking a type.
//
// All types cooperate with errors.Is and errors.As. LinkageError matches by
// Code, so errors.Is(err, errs.ErrDuplicateLibrary) works on any wrapped
// LinkageError carrying that code.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies a LinkageError.
type Code string

const (
	// Malformed indicates an invalid binary name.
	Malformed Code = "malformed-name"
	// ClassFormat indicates the raw type data could not be used.
	ClassFormat Code = "class-format"
	// DuplicateDefinition indicates a second definition of a name in one loader.
	DuplicateDefinition Code = "duplicate-definition"
	// DuplicateLibrary indicates a native library owned by another loader.
	DuplicateLibrary Code = "duplicate-library"
	// UnsatisfiedLink indicates a native library could not be found or attached.
	UnsatisfiedLink Code = "unsatisfied-link"
)

var (
	// ErrMalformedName matches any LinkageError with code Malformed.
	ErrMalformedName = &LinkageError{Code: Malformed}
	// ErrClassFormat matches any LinkageError with code ClassFormat.
	ErrClassFormat = &LinkageError{Code: ClassFormat}
	// ErrDuplicateDefinition matches any LinkageError with code DuplicateDefinition.
	ErrDuplicateDefinition = &LinkageError{Code: DuplicateDefinition}
	// ErrDuplicateLibrary matches any LinkageError with code DuplicateLibrary.
	ErrDuplicateLibrary = &LinkageError{Code: DuplicateLibrary}
	// ErrUnsatisfiedLink matches any LinkageError with code UnsatisfiedLink.
	ErrUnsatisfiedLink = &LinkageError{Code: UnsatisfiedLink}

	// ErrPackageExists is returned when a package is defined twice.
	ErrPackageExists = errors.New("ldx: package already defined")
)

// TypeNotFoundError reports that no loader in the chain produced Name.
type TypeNotFoundError struct {
	// Name is the requested binary name.
	Name string
	// Loader is the name of the loader whose step failed, if known.
	Loader string
	// Err is an optional cause (for example an fs.ErrNotExist from a provider).
	Err error
}

// NotFound returns a TypeNotFoundError for name raised by loader.
func NotFound(name, loader string) *TypeNotFoundError {
	return &TypeNotFoundError{Name: name, Loader: loader}
}

func (e *TypeNotFoundError) Error() string {
	msg := "ldx: type " + e.Name + " not found"
	if e.Loader != "" {
		msg += " by loader " + e.Loader
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TypeNotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a TypeNotFoundError.
func IsNotFound(err error) bool {
	var nf *TypeNotFoundError
	return errors.As(err, &nf)
}

// LinkageError is the fatal error family.
type LinkageError struct {
	// Code classifies the failure.
	Code Code
	// Subject is the type name or canonical library name involved.
	Subject string
	// Owner names the loader involved, if any.
	Owner string
	// Err is the underlying cause, if any.
	Err error
}

// Linkage constructs a LinkageError.
func Linkage(code Code, subject, owner string, err error) *LinkageError {
	return &LinkageError{Code: code, Subject: subject, Owner: owner, Err: err}
}

func (e *LinkageError) Error() string {
	msg := fmt.Sprintf("ldx: linkage error (%s)", e.Code)
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	if e.Owner != "" {
		msg += " [loader " + e.Owner + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LinkageError) Unwrap() error { return e.Err }

// Is matches another LinkageError by Code. A target without a Code matches
// every LinkageError.
func (e *LinkageError) Is(target error) bool {
	t, ok := target.(*LinkageError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// IsLinkage reports whether err is, or wraps, a LinkageError of any code.
func IsLinkage(err error) bool {
	var le *LinkageError
	return errors.As(err, &le)
}

// SignerMismatchError reports a type whose signers differ from the ones
// recorded for its package.
type SignerMismatchError struct {
	Package string
	Type    string
}

func (e *SignerMismatchError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("ldx: signer information does not match signer information of other types in package %q", e.Package)
	}
	return fmt.Sprintf("ldx: signer information of %s does not match signer information of other types in package %q", e.Type, e.Package)
}

// SealingError reports a type defined into a sealed package from a foreign
// code source.
type SealingError struct {
	Package string
	Type    string
}

func (e *SealingError) Error() string {
	return fmt.Sprintf("ldx: sealing violation: package %q is sealed, cannot define %s", e.Package, e.Type)
}

// InitializationError wraps a failure of a type's one-time initializer.
type InitializationError struct {
	Name string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("ldx: initialization of %s failed: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
