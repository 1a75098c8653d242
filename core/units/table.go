package units

// install populates the standard symbol table. Canonical units are SI
// (kelvin for temperature, the bit for data).
func (r *Registry) install() {
	r.canonical[Length] = "m"
	r.add(Length, "nm", 1e-9)
	r.add(Length, "um", 1e-6)
	r.add(Length, "mm", 1e-3)
	r.add(Length, "cm", 1e-2)
	r.add(Length, "m", 1)
	r.add(Length, "km", 1e3)
	r.add(Length, "in", 0.0254)
	r.add(Length, "ft", 0.3048)
	r.add(Length, "yd", 0.9144)
	r.add(Length, "mi", 1609.344)
	r.add(Length, "nmi", 1852)

	r.canonical[Mass] = "kg"
	r.add(Mass, "mg", 1e-6)
	r.add(Mass, "g", 1e-3)
	r.add(Mass, "kg", 1)
	r.add(Mass, "t", 1e3)
	r.add(Mass, "lb", 0.45359237)
	r.add(Mass, "oz", 0.028349523125)

	r.canonical[Duration] = "s"
	r.add(Duration, "ns", 1e-9)
	r.add(Duration, "us", 1e-6)
	r.add(Duration, "ms", 1e-3)
	r.add(Duration, "s", 1)
	r.add(Duration, "min", 60)
	r.add(Duration, "h", 3600)
	r.add(Duration, "day", 86400)
	r.add(Duration, "week", 604800)

	r.canonical[Velocity] = "m/s"
	r.add(Velocity, "m/s", 1)
	r.add(Velocity, "km/h", 1000.0/3600.0)
	r.add(Velocity, "mph", 1609.344/3600.0)
	r.add(Velocity, "kn", 1852.0/3600.0)
	r.add(Velocity, "ft/s", 0.3048)

	r.canonical[Temperature] = "K"
	r.add(Temperature, "K", 1)
	r.addAffine(Temperature, "degC", 1, 273.15)
	r.addAffine(Temperature, "C", 1, 273.15)
	r.addAffine(Temperature, "degF", 5.0/9.0, 255.3722222222222)
	r.addAffine(Temperature, "F", 5.0/9.0, 255.3722222222222)

	r.canonical[Frequency] = "Hz"
	r.add(Frequency, "Hz", 1)
	r.add(Frequency, "kHz", 1e3)
	r.add(Frequency, "MHz", 1e6)
	r.add(Frequency, "GHz", 1e9)
	r.add(Frequency, "rpm", 1.0/60.0)

	r.canonical[Angle] = "rad"
	r.add(Angle, "rad", 1)
	r.add(Angle, "deg", 0.017453292519943295)
	r.add(Angle, "grad", 0.015707963267948967)
	r.add(Angle, "turn", 6.283185307179586)

	r.canonical[Area] = "m2"
	r.add(Area, "mm2", 1e-6)
	r.add(Area, "cm2", 1e-4)
	r.add(Area, "m2", 1)
	r.add(Area, "km2", 1e6)
	r.add(Area, "ha", 1e4)
	r.add(Area, "acre", 4046.8564224)

	r.canonical[Volume] = "m3"
	r.add(Volume, "ml", 1e-6)
	r.add(Volume, "cl", 1e-5)
	r.add(Volume, "l", 1e-3)
	r.add(Volume, "m3", 1)
	r.add(Volume, "gal", 0.003785411784)

	r.canonical[Pressure] = "Pa"
	r.add(Pressure, "Pa", 1)
	r.add(Pressure, "hPa", 100)
	r.add(Pressure, "kPa", 1e3)
	r.add(Pressure, "MPa", 1e6)
	r.add(Pressure, "bar", 1e5)
	r.add(Pressure, "mbar", 100)
	r.add(Pressure, "atm", 101325)
	r.add(Pressure, "psi", 6894.757293168)
	r.add(Pressure, "mmHg", 133.322387415)

	r.canonical[Energy] = "J"
	r.add(Energy, "J", 1)
	r.add(Energy, "kJ", 1e3)
	r.add(Energy, "MJ", 1e6)
	r.add(Energy, "Wh", 3600)
	r.add(Energy, "kWh", 3.6e6)
	r.add(Energy, "cal", 4.184)
	r.add(Energy, "kcal", 4184)
	r.add(Energy, "eV", 1.602176634e-19)

	r.canonical[Power] = "W"
	r.add(Power, "mW", 1e-3)
	r.add(Power, "W", 1)
	r.add(Power, "kW", 1e3)
	r.add(Power, "MW", 1e6)
	r.add(Power, "hp", 745.6998715822702)

	r.canonical[Voltage] = "V"
	r.add(Voltage, "mV", 1e-3)
	r.add(Voltage, "V", 1)
	r.add(Voltage, "kV", 1e3)

	r.canonical[Current] = "A"
	r.add(Current, "mA", 1e-3)
	r.add(Current, "A", 1)

	r.canonical[Resistance] = "Ohm"
	r.add(Resistance, "mOhm", 1e-3)
	r.add(Resistance, "Ohm", 1)
	r.add(Resistance, "kOhm", 1e3)
	r.add(Resistance, "MOhm", 1e6)

	r.installData()
}

// installData wires the data-quantity symbols. The canonical unit is the
// bit. SI prefixes scale by 1000 under Decimal and 1024 under Binary; the
// IEC prefixes are binary regardless.
func (r *Registry) installData() {
	r.canonical[Data] = "bit"

	k := 1000.0
	if r.convention == Binary {
		k = 1024.0
	}

	r.add(Data, "bit", 1)
	r.add(Data, "b", 1)
	r.add(Data, "byte", 8)
	r.add(Data, "B", 8)

	r.add(Data, "kb", k)
	r.add(Data, "Mb", k*k)
	r.add(Data, "Gb", k*k*k)
	r.add(Data, "Tb", k*k*k*k)

	r.add(Data, "kB", 8*k)
	r.add(Data, "MB", 8*k*k)
	r.add(Data, "GB", 8*k*k*k)
	r.add(Data, "TB", 8*k*k*k*k)

	const ki = 1024.0
	r.add(Data, "Kib", ki)
	r.add(Data, "Mib", ki*ki)
	r.add(Data, "Gib", ki*ki*ki)
	r.add(Data, "Tib", ki*ki*ki*ki)
	r.add(Data, "KiB", 8*ki)
	r.add(Data, "MiB", 8*ki*ki)
	r.add(Data, "GiB", 8*ki*ki*ki)
	r.add(Data, "TiB", 8*ki*ki*ki*ki)
}
