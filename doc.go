// Package windstream extracts the U and V wind components from GFS GRIB2
// analysis files and streams them into object storage without ever holding
// a whole file in memory or on disk.
//
// Each file is processed by one sequential task: the download is split into
// GRIB2 records, records carrying eastward (UGRD) or northward (VGRD) wind
// are kept, and the kept bytes are uploaded as a multipart object. The
// object only becomes visible when the upload completes; any failure aborts
// the upload so no partial object is ever left behind.
//
// Files are independent. A Client processes a batch of them with optional
// bounded concurrency, and one file's failure never stops the others.
//
// Example usage:
//
//	s3Client, err := storage.NewS3Client(ctx, storage.S3Config{Region: "us-east-1"})
//	if err != nil {
//	    return err
//	}
//	backend, err := storage.NewS3Backend(s3Client, "gfs-wind")
//	if err != nil {
//	    return err
//	}
//
//	client, err := windstream.New(backend, windstream.WithConcurrency(2))
//	if err != nil {
//	    return err
//	}
//
//	cycles, _ := gfs.Cycles(start, end, nil)
//	result := client.ProcessBatch(ctx, windstream.CycleJobs(cycles, gfs.DefaultBaseURL, "wind"))
//	if err := result.Err(); err != nil {
//	    return err
//	}
package windstream
