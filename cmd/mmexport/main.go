// mmexport exports media-file metadata as JSON, CSV or Parquet.
//
// Usage:
//
//	# Export every file under a folder, one merged JSON file
//	mmexport export ~/Music/Album
//
//	# One CSV per file, zipped, delivered to S3
//	mmexport settings set exportAsCsv true
//	mmexport settings set multipleExportType 2
//	mmexport export ~/Music --s3-bucket my-bucket --s3-prefix exports/
//
//	# Flatten JSON metadata trees to CSV on stdout
//	mmexport flatten tree1.json tree2.json
//
//	# Copy one value to the clipboard (cellAction 2)
//	mmexport cell song.mp3 common.title
//
//	# Export trees queued on SQS
//	mmexport queue --queue-url https://sqs.../metadata
package main

func main() {
	Execute()
}
