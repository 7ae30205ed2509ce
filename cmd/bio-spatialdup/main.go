// bio-spatialdup counts, lists and removes spatial duplicates in
// Illumina FASTQ files: reads with equal sequences that lie close
// together on the same flowcell tile.
package main

import "github.com/grailbio/spatialdup/cmd/bio-spatialdup/cmd"

func main() {
	cmd.Run()
}
