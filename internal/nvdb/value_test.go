package nvdb

import "testing"

func TestValueCoercions(t *testing.T) {
	tests := []struct {
		name    string
		v       Value
		wantInt int64
		intOK   bool
		truthy  bool
	}{
		{name: "int", v: Int(70), wantInt: 70, intOK: true, truthy: true},
		{name: "zero int", v: Int(0), wantInt: 0, intOK: true, truthy: false},
		{name: "float truncates", v: Float(3.9), wantInt: 3, intOK: true, truthy: true},
		{name: "bool", v: Bool(true), wantInt: 1, intOK: true, truthy: true},
		{name: "numeric string", v: String(" 42 "), wantInt: 42, intOK: true, truthy: true},
		{name: "malformed string", v: String("abc"), intOK: false, truthy: true},
		{name: "NA string", v: String("NA"), intOK: false, truthy: false},
		{name: "null", v: Null(), intOK: false, truthy: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.v.Int64()
			if ok != tt.intOK || (ok && got != tt.wantInt) {
				t.Errorf("Int64() = %d, %v; want %d, %v", got, ok, tt.wantInt, tt.intOK)
			}
			if tt.v.Truthy() != tt.truthy {
				t.Errorf("Truthy() = %v, want %v", tt.v.Truthy(), tt.truthy)
			}
		})
	}
}

func TestPropertiesText(t *testing.T) {
	p := Properties{
		"name":    String("  Storgatan  "),
		"missing": Null(),
		"na":      String("NA"),
		"num":     Int(17),
	}
	if got := p.Text("name"); got != "Storgatan" {
		t.Errorf("Text(name) = %q", got)
	}
	if got := p.Text("na"); got != "" {
		t.Errorf("Text(na) = %q, want empty", got)
	}
	if got := p.Text("absent"); got != "" {
		t.Errorf("Text(absent) = %q, want empty", got)
	}
	if got := p.Text("num"); got != "17" {
		t.Errorf("Text(num) = %q", got)
	}
}

func TestNormalizeGDBBooleans(t *testing.T) {
	p := Properties{
		"Motorvag":  Int(-1), // ESRI true
		"Klass_181": Int(-1), // not a boolean column; untouched
	}
	p.Normalize()

	if n, _ := p.Int64("Motorvag"); n != 1 {
		t.Errorf("Motorvag = %d, want 1", n)
	}
	if n, _ := p.Int64("Klass_181"); n != -1 {
		t.Errorf("Klass_181 = %d, want -1", n)
	}
	if !p.Flag("Motorvag") {
		t.Error("Motorvag flag should be set")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	p := Properties{
		"Motorvag":  Int(1),
		"Bredd_156": Float(6.5),
		"Namn_130":  String("Essingeleden"),
		"Farjeled":  Bool(false),
		"Hogst_225": Null(),
	}
	data, err := p.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	back, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if n, ok := back.Int64("Motorvag"); !ok || n != 1 {
		t.Errorf("Motorvag = %d, %v", n, ok)
	}
	if f, ok := back.Float64("Bredd_156"); !ok || f != 6.5 {
		t.Errorf("Bredd_156 = %v, %v", f, ok)
	}
	if s := back.Text("Namn_130"); s != "Essingeleden" {
		t.Errorf("Namn_130 = %q", s)
	}
	if back.Flag("Farjeled") {
		t.Error("Farjeled should be false")
	}
	if v, found := back["Hogst_225"]; !found || !v.IsNull() {
		t.Errorf("Hogst_225 = %v, %v; want null", v, found)
	}
}
