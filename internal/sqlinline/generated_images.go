package sqlinline

const QDeleteGeneratedImages = `--sql a1ae3074-e721-4723-a953-ab2e0219769a
delete from generated_images
where project_id = $1::text;
`

const QInsertGeneratedImage = `--sql d130324b-0d84-4006-acaa-e198107c2998
insert into generated_images (project_id, id, section_id, position, prompt, status, error, mime_type, image_data, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::int, $5::text, $6::text, $7::text, $8::text, $9::text, $10::timestamptz, now());
`

const QUpdateGeneratedImage = `--sql 081b5b1c-5f5d-420d-b6c6-8d4ecacacbc2
update generated_images
set status = $3::text,
    error = $4::text,
    mime_type = $5::text,
    image_data = $6::text,
    created_at = $7::timestamptz,
    updated_at = now()
where project_id = $1::text
  and id = $2::text;
`

const QSelectGeneratedImages = `--sql 5c86a919-4b0a-4579-a04e-66a7d12ce3b0
select id, section_id, prompt, status, error, mime_type, image_data, created_at
from generated_images
where project_id = $1::text
order by position asc;
`
