package sensors

import (
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Serial sensor hubs frame each reading as an NMEA sentence with talker "IM":
//
//	$IMACC,0.12,-0.03,9.79*hh
//	$IMRTV,0.01,0.02,0.70,0.71,0.05*hh
//
// The sentence type selects the hardware sensor. Type names avoid the
// standard sentences (ROT, HDT...) since parsers are registered globally.
const hubTalker = "IM"

var hubSentenceTypes = map[string]Type{
	"ACC": TypeAccelerometer,
	"GYR": TypeGyroscope,
	"MAG": TypeMagneticField,
	"GRA": TypeGravity,
	"LAC": TypeLinearAcceleration,
	"RTV": TypeRotationVector,
	"GRV": TypeGameRotationVector,
}

// Reading is a parsed hub sentence.
type Reading struct {
	nmea.BaseSentence
	Sensor Type
	Values []float64
}

func init() {
	for name, t := range hubSentenceTypes {
		if err := nmea.RegisterParser(name, readingParser(t)); err != nil {
			panic(fmt.Sprintf("sensors: register %s parser: %v", name, err))
		}
	}
}

func readingParser(t Type) nmea.ParserFunc {
	return func(s nmea.BaseSentence) (nmea.Sentence, error) {
		if len(s.Fields) < 3 {
			return nil, fmt.Errorf("nmea: %s has %d fields, want at least 3", s.Type, len(s.Fields))
		}
		p := nmea.NewParser(s)
		r := Reading{BaseSentence: s, Sensor: t, Values: make([]float64, len(s.Fields))}
		for i := range s.Fields {
			r.Values[i] = p.Float64(i, "value")
		}
		return r, p.Err()
	}
}

// ParseReading parses one hub line.
func ParseReading(line string) (Reading, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return Reading{}, err
	}
	r, ok := s.(Reading)
	if !ok {
		return Reading{}, fmt.Errorf("nmea: unexpected sentence %q", s.DataType())
	}
	if r.Talker != hubTalker {
		return Reading{}, fmt.Errorf("nmea: unexpected talker %q", r.Talker)
	}
	return r, nil
}

// FormatReading builds a hub line for t, checksum included.
func FormatReading(t Type, values []float32) (string, error) {
	var name string
	for n, typ := range hubSentenceTypes {
		if typ == t {
			name = n
		}
	}
	if name == "" {
		return "", fmt.Errorf("nmea: no sentence for %s", t)
	}

	var b strings.Builder
	b.WriteString(hubTalker + name)
	for _, v := range values {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	body := b.String()
	return fmt.Sprintf("$%s*%s", body, nmea.Checksum(body)), nil
}
