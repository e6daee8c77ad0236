// Package hashpw implements the hashpw command: it reads a password from the
// terminal without echo and prints its encoded hash, for seeding accounts
// directly in the database.
package hashpw

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

// GetPassword prints prompt to w and reads a password from stdin without
// echo. The caller should wipe the returned slice.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetConfirmedPassword asks twice and fails when the entries differ.
func GetConfirmedPassword(w io.Writer) ([]byte, error) {
	first, err := GetPassword(w, "Enter password: ")
	if err != nil {
		return nil, err
	}
	second, err := GetPassword(w, "Repeat password: ")
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		common.WipeByteArray(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}
