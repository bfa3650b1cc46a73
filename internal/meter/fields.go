package meter

// Quantity is the physical kind of a measured field.
type Quantity int

const (
	Identifier Quantity = iota
	Voltage
	Current
	Frequency
	Power
	ReactivePower
	Energy
)

var quantityNames = map[Quantity]string{
	Identifier:    "identifier",
	Voltage:       "voltage",
	Current:       "current",
	Frequency:     "frequency",
	Power:         "power",
	ReactivePower: "reactivePower",
	Energy:        "energy",
}

func (q Quantity) String() string {
	if n, ok := quantityNames[q]; ok {
		return n
	}
	return "unknown"
}

// MarshalText encodes the quantity by name.
func (q Quantity) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// Group is the panel section a field is displayed in.
type Group int

const (
	GroupVoltage Group = iota
	GroupCurrent
	GroupPower
	GroupSystem
)

// Groups lists the panel sections in display order.
var Groups = []Group{GroupVoltage, GroupCurrent, GroupPower, GroupSystem}

// Title returns the section heading.
func (g Group) Title() string {
	switch g {
	case GroupVoltage:
		return "Voltage Parameters"
	case GroupCurrent:
		return "Current Parameters"
	case GroupPower:
		return "Power Parameters"
	default:
		return "System Parameters"
	}
}

// FieldSlave is the wire name of the device identifier.
const FieldSlave = "Slave"

// FieldSpec describes one field of an upstream record.
type FieldSpec struct {
	Name     string
	Quantity Quantity
	Unit     string
	Group    Group
}

// fieldTable maps wire names to quantities, in display order.
var fieldTable = []FieldSpec{
	{"VR", Voltage, "V", GroupVoltage},
	{"VY", Voltage, "V", GroupVoltage},
	{"VB", Voltage, "V", GroupVoltage},
	{"VAR", ReactivePower, "VAR", GroupVoltage},
	{"VAY", ReactivePower, "VAR", GroupVoltage},
	{"VAB", ReactivePower, "VAR", GroupVoltage},
	{"IR", Current, "A", GroupCurrent},
	{"IY", Current, "A", GroupCurrent},
	{"IB", Current, "A", GroupCurrent},
	{"EIB", Energy, "kWh", GroupCurrent},
	{"EEB", Energy, "kWh", GroupCurrent},
	{"WR", Power, "kW", GroupPower},
	{"WY", Power, "kW", GroupPower},
	{"WB", Power, "kW", GroupPower},
	{"VARR", ReactivePower, "VAR", GroupPower},
	{"VARY", ReactivePower, "VAR", GroupPower},
	{"VARB", ReactivePower, "VAR", GroupPower},
	{"FRE", Frequency, "Hz", GroupSystem},
	{FieldSlave, Identifier, "", GroupSystem},
}

var fieldIndex = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(fieldTable))
	for _, f := range fieldTable {
		m[f.Name] = f
	}
	return m
}()

// Fields returns the field table in display order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldTable))
	copy(out, fieldTable)
	return out
}

// Lookup returns the spec for a wire name.
func Lookup(name string) (FieldSpec, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// QuantityOf returns the quantity of a wire name. Unknown names are
// treated as identifiers, which are informational only.
func QuantityOf(name string) Quantity {
	if f, ok := fieldIndex[name]; ok {
		return f.Quantity
	}
	return Identifier
}
