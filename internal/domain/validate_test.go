package domain

import "testing"

func TestValidateFieldValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		field ProfileField
		value string
		ok    bool
	}{
		{FieldFirstName, "Jo", true},
		{FieldFirstName, "J", false},
		{FieldLastName, "", false},
		{FieldPhone, "+221 77 123 45 67", true},
		{FieldPhone, "x", false},
		{FieldPhone, "", false},
		{FieldEmail, "", true},
		{FieldEmail, "awa@example.org", true},
		{FieldEmail, "not-an-email", false},
		{FieldEmail, "Awa <awa@example.org>", false},
		{FieldPhotoRef, "", true},
		{FieldPhotoRef, "https://files.example.org/p.jpg", true},
		{FieldPhotoRef, "javascript:alert(1)", false},
		{FieldSignatureRef, "ftp://files.example.org/s.png", false},
		{FieldChildrenCount, "3", true},
		{FieldChildrenCount, "-1", false},
		{FieldIDDocumentIssued, "2020-01-05", true},
		{FieldIDDocumentIssued, "05/01/2020", false},
		{FieldAddress, "", true},
		{ProfileField("nickname"), "x", false},
	}
	for _, tc := range cases {
		err := ValidateFieldValue(tc.field, tc.value)
		if tc.ok && err != nil {
			t.Errorf("%s=%q: unexpected error %v", tc.field, tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s=%q: expected an error", tc.field, tc.value)
		}
	}
}

func TestCanonicalFieldValue(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"02": "2", "+2": "2", "0": "0", "": ""} {
		got, err := CanonicalFieldValue(FieldChildrenCount, in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Errorf("%q: got %q, want %q", in, got, want)
		}
	}

	got, err := CanonicalFieldValue(FieldAddress, "12 Rue A")
	if err != nil || got != "12 Rue A" {
		t.Fatalf("text fields are unchanged: got %q err=%v", got, err)
	}
}
