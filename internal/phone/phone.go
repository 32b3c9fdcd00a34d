package phone

import (
	"errors"
	"regexp"
	"strings"
)

// canonicalRe каноничный российский номер: +7 и ровно 10 цифр
var canonicalRe = regexp.MustCompile(`^\+7\d{10}$`)

// ErrInvalid номер не удалось привести к каноничному виду
var ErrInvalid = errors.New("некорректный номер телефона")

// Normalize приводит номер к виду +7XXXXXXXXXX.
// Принимает цифры с пробелами, дефисами и скобками, префиксы 8, 7 и +7.
// Десятизначный номер без префикса дополняется кодом страны.
func Normalize(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// разделители отбрасываем, плюс учтён через длину
		default:
			return "", ErrInvalid
		}
	}

	d := digits.String()
	switch {
	case len(d) == 11 && (d[0] == '7' || d[0] == '8'):
		d = d[1:]
	case len(d) == 10:
		// национальный формат без кода страны
	default:
		return "", ErrInvalid
	}

	normalized := "+7" + d
	if !canonicalRe.MatchString(normalized) {
		return "", ErrInvalid
	}
	return normalized, nil
}

// IsValid проверяет, что номер уже в каноничном виде
func IsValid(p string) bool {
	return canonicalRe.MatchString(p)
}
