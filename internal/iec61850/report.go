package iec61850

import "time"

// entryTimeEpochOffsetMillis converts the IEC 61850 entry time epoch
// (1984-01-01) to the Unix epoch.
const entryTimeEpochOffsetMillis int64 = 441763200000

// EntryTime is the raw buffer entry time as delivered by the device, in
// milliseconds since the IEC 61850 epoch.
type EntryTime int64

// Time returns the entry time converted to the Unix epoch, in UTC.
func (e EntryTime) Time() time.Time {
	return time.UnixMilli(int64(e) + entryTimeEpochOffsetMillis).UTC()
}

// DataSet is the member list of a report.
type DataSet struct {
	Ref     string
	Members []*FcModelNode
}

// Report is an unsolicited, device-pushed notification. It is immutable once
// received and lives for exactly one listener callback.
type Report struct {
	RptID              string
	DataSetRef         string
	ConfRev            uint32
	SqNum              *int
	SubSqNum           *int
	BufOvfl            bool
	MoreSegmentsFollow bool
	EntryTime          *EntryTime
	DataSet            *DataSet
}

// TimeOfEntry returns the converted entry time, or false when the device did
// not include one.
func (r *Report) TimeOfEntry() (time.Time, bool) {
	if r.EntryTime == nil {
		return time.Time{}, false
	}
	return r.EntryTime.Time(), true
}
