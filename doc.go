// Package nwbchunk configures and performs the chunked, compressed,
// bounded-memory write of every array in a document graph into a
// hierarchical container.
//
// The flow is Inventory, ExtractInfo, BuildDefaultConfiguration, optional
// edits to the returned BackendConfiguration, then BindAndWrite, which
// validates the configuration, creates the container hierarchy and copies
// each dataset window by window.
package nwbchunk
