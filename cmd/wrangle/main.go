// Command wrangle moves tabular data between Amazon S3 and Parquet or CSV
// files, and inspects the objects it leaves behind.
package main

func main() {
	Execute()
}
