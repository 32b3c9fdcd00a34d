package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+79123456789", "+79123456789", false},
		{"79123456789", "+79123456789", false},
		{"89123456789", "+79123456789", false},
		{"9123456789", "+79123456789", false},
		{"8 (912) 345-67-89", "+79123456789", false},
		{"+7 912 345 67 89", "+79123456789", false},
		{"  +7-912-345-67-89  ", "+79123456789", false},
		{"912345678", "", true},       // слишком короткий
		{"891234567890", "", true},    // слишком длинный
		{"8912345678a", "", true},     // буквы
		{"", "", true},
		{"+1 202 555 0100", "", true}, // чужой код страны
	}

	for _, c := range cases {
		got, err := Normalize(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q): ожидалась ошибка, получено %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q): неожиданная ошибка %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, ожидалось %q", c.in, got, c.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("+79123456789") {
		t.Error("каноничный номер должен быть валидным")
	}
	if IsValid("89123456789") {
		t.Error("номер с восьмёркой не каноничен")
	}
}
