package ai2

// Package ai2 implements the framed binary protocol spoken by TI GNSS
// receivers (/dev/tigps and the mainline /dev/gnssX interface).
//
// The codec is pure: it turns raw bytes into validated frames and
// structured reports, and turns (class, command, payload) back into
// wire bytes. Opening the device, pacing the init sequence, and
// rendering reports live elsewhere.
