package telemetry

import "errors"

// Sink receives the records the scheduler produces.
type Sink interface {
	WriteDay(DayStats) error
	WriteFemale(FemaleRecord) error
}

// MultiSink fans records out to several sinks. Nil entries are skipped.
type MultiSink []Sink

// WriteDay writes the day to every sink and joins their errors.
func (m MultiSink) WriteDay(s DayStats) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.WriteDay(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteFemale writes the record to every sink and joins their errors.
func (m MultiSink) WriteFemale(r FemaleRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.WriteFemale(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
