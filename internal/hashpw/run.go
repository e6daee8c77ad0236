package hashpw

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
)

// Run prompts on errOut and writes the encoded hash to out.
func Run(out, errOut io.Writer, hasher auth.PasswordHasher) error {
	pw, err := GetConfirmedPassword(errOut)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if len(pw) == 0 {
		return fmt.Errorf("%w: empty password", common.ErrValidation)
	}

	encoded, err := hasher.Hash(string(pw))
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	_, err = fmt.Fprintln(out, encoded)
	return err
}
