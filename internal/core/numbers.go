package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/routecards/internal/common"
)

// NormalizeFormNumber trims input and left-pads it with zeros to at least width digits.
func NormalizeFormNumber(input string, width int) (string, error) {
	s := strings.TrimSpace(input)
	if err := checkDigits(s); err != nil {
		return "", err
	}
	return strings.Repeat("0", max(width-len(s), 0)) + s, nil
}

// ExpandNumbers returns count consecutive form numbers starting at start, all padded to
// max(width, len(start)) digits. A range that outgrows that width is rejected.
func ExpandNumbers(start string, count, width int) ([]string, error) {
	s := strings.TrimSpace(start)
	if err := checkDigits(s); err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, common.InvalidInputErrorf("count must be positive, got %d", count)
	}
	first, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, common.InvalidInputErrorf("form number %q is out of range", s)
	}
	w := max(width, len(s))
	last := first + uint64(count) - 1
	if last < first || len(strconv.FormatUint(last, 10)) > w {
		return nil, common.InvalidInputErrorf("range %s+%d does not fit in %d digits", s, count, w)
	}

	numbers := make([]string, count)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("%0*d", w, first+uint64(i))
	}
	return numbers, nil
}

func checkDigits(s string) error {
	v := common.NewValidator().Field("form_number", s, common.Digits)
	return common.ValidateAndReturnError(v)
}
