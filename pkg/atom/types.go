// SPDX-License-Identifier: GPL-2.0-or-later

package atom

import "brawtl/pkg/schema"

type f = schema.Field

var (
	fullBox = []f{
		{Name: "version", Type: schema.Uint8},
		{Name: "flags", Type: schema.Bytes(3)},
	}
	countedBox = append(fullBox[:2:2], f{Name: "num_entries", Type: schema.Uint32})
)

// Layouts of the decoded atoms.
var (
	MvhdHeader = schema.MustCompile("mvhd", append(fullBox[:2:2],
		f{Name: "creation_time", Type: schema.Uint32},
		f{Name: "modification_time", Type: schema.Uint32},
		f{Name: "timescale", Type: schema.Uint32},
		f{Name: "duration", Type: schema.Uint32},
		f{Name: "preferred_rate", Type: schema.Uint32},
		f{Name: "preferred_volume", Type: schema.Uint16},
		f{Name: "reserved", Type: schema.Bytes(10)},
		f{Name: "matrix", Type: schema.Bytes(36)},
		f{Name: "preview_time", Type: schema.Uint32},
		f{Name: "preview_duration", Type: schema.Uint32},
		f{Name: "poster_time", Type: schema.Uint32},
		f{Name: "selection_time", Type: schema.Uint32},
		f{Name: "selection_duration", Type: schema.Uint32},
		f{Name: "current_time", Type: schema.Uint32},
		f{Name: "next_track_id", Type: schema.Uint32},
	)...)

	TkhdHeader = schema.MustCompile("tkhd", append(fullBox[:2:2],
		f{Name: "creation_time", Type: schema.Uint32},
		f{Name: "modification_time", Type: schema.Uint32},
		f{Name: "track_id", Type: schema.Uint32},
		f{Name: "reserved1", Type: schema.Bytes(4)},
		f{Name: "duration", Type: schema.Uint32},
		f{Name: "reserved2", Type: schema.Bytes(8)},
		f{Name: "layer", Type: schema.Uint16},
		f{Name: "alternate_group", Type: schema.Uint16},
		f{Name: "volume", Type: schema.Uint16},
		f{Name: "reserved3", Type: schema.Uint16},
		f{Name: "matrix", Type: schema.Bytes(36)},
		f{Name: "track_width", Type: schema.Uint32},
		f{Name: "track_height", Type: schema.Uint32},
	)...)

	MdhdHeader = schema.MustCompile("mdhd", append(fullBox[:2:2],
		f{Name: "creation_time", Type: schema.Uint32},
		f{Name: "modification_time", Type: schema.Uint32},
		f{Name: "timescale", Type: schema.Uint32},
		f{Name: "duration", Type: schema.Uint32},
		f{Name: "language", Type: schema.Uint16},
		f{Name: "quality", Type: schema.Uint16},
	)...)

	ElstHeader = schema.MustCompile("elst", countedBox...)
	ElstRecord = schema.MustCompile("elst entry",
		f{Name: "track_duration", Type: schema.Uint32},
		f{Name: "media_time", Type: schema.Uint32},
		f{Name: "media_rate", Type: schema.Uint32},
	)

	SttsHeader = schema.MustCompile("stts", countedBox...)
	SttsRecord = schema.MustCompile("stts entry",
		f{Name: "sample_count", Type: schema.Uint32},
		f{Name: "sample_duration", Type: schema.Uint32},
	)

	StscHeader = schema.MustCompile("stsc", countedBox...)
	StscRecord = schema.MustCompile("stsc entry",
		f{Name: "first_chunk", Type: schema.Uint32},
		f{Name: "samples_per_chunk", Type: schema.Uint32},
		f{Name: "sample_description_id", Type: schema.Uint32},
	)

	StszHeader = schema.MustCompile("stsz", append(fullBox[:2:2],
		f{Name: "sample_size", Type: schema.Uint32},
		f{Name: "num_entries", Type: schema.Uint32},
	)...)
	StszRecord = schema.MustCompile("stsz entry",
		f{Name: "size", Type: schema.Uint32},
	)

	Co64Header = schema.MustCompile("co64", countedBox...)
	Co64Record = schema.MustCompile("co64 entry",
		f{Name: "offset", Type: schema.Uint64},
	)
)

// Default registry of the atoms found in the metadata block.
var Default = MustRegistry(
	ContainerType(Moov),
	ContainerType(Trak),
	ContainerType(Edts),
	ContainerType(Tref),
	ContainerType(Mdia),
	ContainerType(Minf),
	ContainerType(Gmhd),
	ContainerType(Dinf),
	ContainerType(Stbl),
	ContainerType(Meta),

	SchemaType(Mvhd, SchemaDesc{Header: MvhdHeader}),
	SchemaType(Tkhd, SchemaDesc{Header: TkhdHeader}),
	SchemaType(Mdhd, SchemaDesc{Header: MdhdHeader}),
	SchemaType(Elst, SchemaDesc{Header: ElstHeader, Record: ElstRecord, CountField: "num_entries"}),
	SchemaType(Stts, SchemaDesc{Header: SttsHeader, Record: SttsRecord, CountField: "num_entries"}),
	SchemaType(Stsc, SchemaDesc{Header: StscHeader, Record: StscRecord, CountField: "num_entries"}),
	SchemaType(Stsz, SchemaDesc{Header: StszHeader, Record: StszRecord, CountField: "num_entries"}),
	SchemaType(Co64, SchemaDesc{Header: Co64Header, Record: Co64Record, CountField: "num_entries"}),

	OpaqueType(Tmcd),
	OpaqueType(Hdlr),
	OpaqueType(Vmhd),
	OpaqueType(Smhd),
	OpaqueType(Gmin),
	OpaqueType(Text),
	OpaqueType(Dref),
	OpaqueType(Stsd),
	OpaqueType(Skip),
	OpaqueType(Keys),
	OpaqueType(Ilst),
)
