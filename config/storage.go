package config

import "os"

// GetStorageBackend returns the backend used for buckets that are not in the
// registry. Defaults to "supabase", the storage the service was built against.
func GetStorageBackend() string {
	return getEnv("VIDPRESS_STORAGE_BACKEND", "supabase")
}

// GetDefaultBackendCredentials collects the credentials of the default backend
// from the environment. Keys match the ones each writer backend reads, so the
// result can be used as models.WriterJob.Credentials directly. Empty values are
// left out.
func GetDefaultBackendCredentials() map[string]string {
	creds := map[string]string{}
	set := func(key, env string) {
		if v := os.Getenv(env); v != "" {
			creds[key] = v
		}
	}

	switch GetStorageBackend() {
	case "supabase":
		set("url", "SUPABASE_URL")
		set("serviceKey", "SUPABASE_SERVICE_KEY")
	case "s3":
		set("accessKey", "VIDPRESS_S3_ACCESS_KEY")
		set("secretKey", "VIDPRESS_S3_SECRET_KEY")
		set("region", "VIDPRESS_S3_REGION")
		set("endpoint", "VIDPRESS_S3_ENDPOINT")
		set("pathStyle", "VIDPRESS_S3_PATH_STYLE")
	case "minio":
		set("endpoint", "VIDPRESS_MINIO_ENDPOINT")
		set("accessKey", "VIDPRESS_MINIO_ACCESS_KEY")
		set("secretKey", "VIDPRESS_MINIO_SECRET_KEY")
		set("secure", "VIDPRESS_MINIO_SECURE")
		set("region", "VIDPRESS_MINIO_REGION")
	case "gcs":
		set("credentialsJSON", "VIDPRESS_GCS_CREDENTIALS_JSON")
		set("endpoint", "VIDPRESS_GCS_ENDPOINT")
	case "sftp":
		set("host", "VIDPRESS_SFTP_HOST")
		set("port", "VIDPRESS_SFTP_PORT")
		set("user", "VIDPRESS_SFTP_USER")
		set("password", "VIDPRESS_SFTP_PASSWORD")
		set("privateKey", "VIDPRESS_SFTP_PRIVATE_KEY")
		set("hostKey", "VIDPRESS_SFTP_HOST_KEY")
		set("remoteDir", "VIDPRESS_SFTP_REMOTE_DIR")
	case "directServe":
		creds["baseDir"] = GetDirectServeBaseDir()
	}

	if _, ok := creds["publicBaseURL"]; !ok {
		if v := os.Getenv("VIDPRESS_PUBLIC_BASE_URL"); v != "" {
			creds["publicBaseURL"] = v
		} else if GetStorageBackend() == "directServe" {
			creds["publicBaseURL"] = GetPublicBaseURL()
		}
	}
	return creds
}
